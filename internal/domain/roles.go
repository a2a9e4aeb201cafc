package domain

import "strings"

// Role описывает роль пользователя в приложении.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole приводит роль из ответа сервера к известной. Неизвестные значения считаются ролью user.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}
