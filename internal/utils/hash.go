package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// CalculateSHA256 вычисляет SHA-256 хеш данных
func CalculateSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashingWriter считает SHA-256 и количество байт, проходящих через него
type HashingWriter struct {
	h hash.Hash
	n int64
}

// NewHashingWriter создает новый HashingWriter
func NewHashingWriter() *HashingWriter {
	return &HashingWriter{h: sha256.New()}
}

func (w *HashingWriter) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	return n, err
}

// Sum возвращает hex-представление хеша
func (w *HashingWriter) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Size возвращает количество записанных байт
func (w *HashingWriter) Size() int64 {
	return w.n
}

// IsHexString проверяет, что строка содержит только шестнадцатеричные символы
func IsHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
