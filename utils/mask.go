package utils

// MaskPhone 公开页面展示的电话号码，只保留前三位和后四位
func MaskPhone(phone string) string {
	runes := []rune(phone)
	n := len(runes)
	if n <= 4 {
		return "****"
	}
	keepHead := 3
	if n < 11 {
		keepHead = 0
	}
	masked := make([]rune, 0, n)
	for i, r := range runes {
		if i < keepHead || i >= n-4 {
			masked = append(masked, r)
			continue
		}
		masked = append(masked, '*')
	}
	return string(masked)
}
