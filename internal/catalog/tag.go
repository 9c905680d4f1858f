package catalog

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Gammanik/buildsync/internal/utils"
)

// TagLength длина тега сборки в шестнадцатеричных символах
const TagLength = 8

// SentinelTag минимальный ненулевой тег, которым помечаются неизвестные компоненты
// в исходящем запросе: вышестоящий узел всегда считает его устаревшим
const SentinelTag = "00000001"

// ErrBadTag возвращается для тега, который не является 8 hex-символами
var ErrBadTag = errors.New("malformed build tag")

// ParseTag разбирает тег сборки как беззнаковое 32-битное число
func ParseTag(tag string) (uint32, error) {
	if len(tag) != TagLength || !utils.IsHexString(tag) {
		return 0, fmt.Errorf("%w: %q", ErrBadTag, tag)
	}

	v, err := strconv.ParseUint(tag, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTag, tag)
	}
	return uint32(v), nil
}

// ValidTag проверяет, что тег можно разобрать
func ValidTag(tag string) bool {
	_, err := ParseTag(tag)
	return err == nil
}

// IsStale сообщает, что тег вызывающей стороны старше локального.
// Некорректный тег с любой стороны никогда не считается устаревшим.
func IsStale(claimed, local string) bool {
	c, err := ParseTag(claimed)
	if err != nil {
		return false
	}
	l, err := ParseTag(local)
	if err != nil {
		return false
	}
	return c < l
}

// SameTag сравнивает теги без учета регистра
func SameTag(a, b string) bool {
	va, errA := ParseTag(a)
	vb, errB := ParseTag(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return va == vb
}
