package model

// UserRole 角色由主后端签发的 JWT 携带，本服务不管理用户
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
