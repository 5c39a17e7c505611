// Package tlsutil 为路由器拨出的上游 Provider 连接提供集中式 TLS 配置
// （TLS 1.2+，仅 AEAD 密码套件）。通过 Options.InsecureSkipVerify，
// 单个 OpenAI 兼容 Provider 可在不影响其余客户端的前提下放宽证书校验，
// 用于自签名证书的私网网关（vLLM/Ollama/LM Studio）。
package tlsutil
