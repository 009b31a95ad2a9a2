package helpers

import (
	"math/rand"
	"strings"
)

// Fuzzer produces hostile inputs for client-side validation.
type Fuzzer struct {
	rnd *rand.Rand
}

// NewFuzzer creates a new fuzzer
func NewFuzzer(seed int64) *Fuzzer {
	return &Fuzzer{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// FuzzSubredditName returns names that must be rejected before any request.
func (f *Fuzzer) FuzzSubredditName() []string {
	names := []string{
		"",
		"a",
		"ab",
		strings.Repeat("a", 51),

		"golang'; DROP TABLE--",
		"golang' OR '1'='1",
		"../../etc/passwd",
		"..\\..\\windows",
		"test/../admin",
		"test%00admin",

		"golang\u0000admin",
		"test\u202eadmin",
		"café",
		"тест",
		"测试",
		"🚀rocket",

		"test\nsubname",
		"test\rsubname",
		"test\tsubname",
		"test\x1Bsubname",

		"test<script>alert('xss')</script>",
		"test-sub",
		"test.sub",
		"test sub",
		"test@sub",
		"test#sub",
		"test?sub=1",
	}
	for i := 0; i < 10; i++ {
		names = append(names, f.GenerateRandomString(3+f.rnd.Intn(20), true)+"!")
	}
	return names
}

// ValidSubredditNames returns edge cases the server accepts.
func (f *Fuzzer) ValidSubredditNames() []string {
	return []string{
		"abc",
		strings.Repeat("a", 50),
		"___",
		"_test",
		"test_",
		"123",
		"GoLang",
		f.GenerateRandomString(12, false),
	}
}

// FuzzUserAgent returns user agents that must be refused.
func (f *Fuzzer) FuzzUserAgent() []string {
	return []string{
		"myapp/1.0\r\nX-Injected: true",
		"myapp/1.0\nHost: evil.example",
		"\r\n",
		strings.Repeat("a", 1000),
	}
}

// FuzzCommentContent returns contents that are blank after trimming.
func (f *Fuzzer) FuzzCommentContent() []string {
	return []string{"", " ", "\t", "\n\n", " \r\n "}
}

// GenerateRandomString creates a random name-safe string, or one drawn from
// a wider alphabet when includeSpecial is set.
func (f *Fuzzer) GenerateRandomString(length int, includeSpecial bool) string {
	chars := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_"
	if includeSpecial {
		chars += "!@#$%^&*()-+=[]{}|;:',.<>?/`~ "
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		sb.WriteByte(chars[f.rnd.Intn(len(chars))])
	}
	return sb.String()
}
