package service

import "github.com/jbweber/homelab/roster/internal/domain"

// UserDTO is the external representation of a user
type UserDTO struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserMapper converts between UserDTO and domain.User. Nil inputs map to nil
// outputs and nil lists map to empty lists.
type UserMapper struct{}

// ToEntity converts a DTO to a domain user
func (UserMapper) ToEntity(dto *UserDTO) *domain.User {
	if dto == nil {
		return nil
	}
	return &domain.User{
		ID:       dto.ID,
		Username: dto.Username,
		Email:    dto.Email,
	}
}

// ToDTO converts a domain user to a DTO
func (UserMapper) ToDTO(entity *domain.User) *UserDTO {
	if entity == nil {
		return nil
	}
	return &UserDTO{
		ID:       entity.ID,
		Username: entity.Username,
		Email:    entity.Email,
	}
}

// ToEntities converts a list of DTOs
func (m UserMapper) ToEntities(dtos []UserDTO) []domain.User {
	entities := make([]domain.User, 0, len(dtos))
	for i := range dtos {
		entities = append(entities, *m.ToEntity(&dtos[i]))
	}
	return entities
}

// ToDTOs converts a list of domain users
func (m UserMapper) ToDTOs(entities []domain.User) []UserDTO {
	dtos := make([]UserDTO, 0, len(entities))
	for i := range entities {
		dtos = append(dtos, *m.ToDTO(&entities[i]))
	}
	return dtos
}
