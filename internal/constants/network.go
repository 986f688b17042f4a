package constants

import "time"

// HTTP client 连接池配置
const (
	DefaultMaxIdleConns        = 256
	DefaultMaxIdleConnsPerHost = 32
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultKeepAlive           = 30 * time.Second
)
