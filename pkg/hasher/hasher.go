package hasher

import (
	"PICs_Gallery/pkg/sanitizer"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CalculateSHA256FromBytes 从字节切片计算 SHA-256 哈希
func CalculateSHA256FromBytes(data []byte) string {
	hashBytes := sha256.Sum256(data)
	return hex.EncodeToString(hashBytes[:])
}

// Fingerprint 返回图片地址的指纹。地址先经过清洗，忽略大小写和首尾空白，
// 因此同一张图片以不同ID出现在多张数据表中时指纹相同。
func Fingerprint(imageURL string) string {
	u := strings.ToLower(strings.TrimSpace(sanitizer.Sanitize(imageURL)))
	if u == "" {
		return ""
	}
	return CalculateSHA256FromBytes([]byte(u))
}
