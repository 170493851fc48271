package model

import (
	"crypto/rand"
	"encoding/hex"
)

// ID 前缀
const (
	IDPrefixUser = "usr"
	IDPrefixTask = "tsk"
)

// NewID 生成带前缀的唯一标识符
//
// 使用加密安全的随机数生成 6 字节（12 个十六进制字符）的 ID，
// 格式为：prefix-xxxxxxxxxxxx
func NewID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
