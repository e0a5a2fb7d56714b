package model

// User 可以登录管理接口的用户 (来自配置文件, 密码为 bcrypt 哈希)
type User struct {
	Username     string `json:"username" toml:"username"`
	PasswordHash string `json:"-" toml:"password_hash"`
	Role         string `json:"role" toml:"role"`
}

// RoleAdmin 允许刷新数据的角色
const RoleAdmin = "admin"
