package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + .env 路径等基础字段，便于不同入口复用。
func BaseFields(action, envFile string) logrus.Fields {
	return logrus.Fields{
		"action":  action,
		"envFile": envFile,
	}
}

// RequestFields 提供 method/path/request_id 字段，供请求日志与代理日志复用。
func RequestFields(method, path, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"method": method,
		"path":   path,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
