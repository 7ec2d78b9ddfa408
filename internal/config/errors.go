package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// envField 拼接字段路径与对应的环境变量名，方便输出 Global.ListenPort(PORT) 形式。
func envField(key string) string {
	if name, ok := envBindings[key]; ok {
		return fmt.Sprintf("%s(%s)", key, name)
	}
	return key
}
