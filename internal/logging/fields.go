package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// QueryFields 提供缓存查询分类日志的固定字段：结果、方法、URL、状态码与正文大小。
func QueryFields(outcome, method, url string, status, bodyBytes int) logrus.Fields {
	return logrus.Fields{
		"action":     "cache_query",
		"outcome":    outcome,
		"method":     method,
		"url":        url,
		"status":     status,
		"body_bytes": bodyBytes,
	}
}
