package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShares 验证股数：必须是纯数字字符串且为正整数
func ParseShares(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("shares is empty")
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, fmt.Errorf("shares must be a positive integer, got %q", s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid shares: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("shares must be positive, got %d", n)
	}
	return n, nil
}

// NormalizeSymbol 规范化股票代码：去空白、转大写
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("symbol is empty")
	}
	if len(s) > 16 {
		return "", fmt.Errorf("symbol too long, max 16 characters")
	}
	return s, nil
}
