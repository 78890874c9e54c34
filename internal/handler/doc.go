// Package handler 按业务拆分的 HTTP 处理器放在子包中
//
// swag init -g cmd/api-gateway/main.go --parseInternal 会扫描该目录，因此这里保留一个包声明
package handler
