package correct

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:html|xhtml|xml)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	trimmed := strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(trimmed); len(m) > 1 {
		return m[1]
	}
	return s
}

// CleanResponse strips wrapping the model adds around its answer and checks
// that the answer is not empty or truncated. minRatio is the smallest allowed
// length of the answer relative to the input, in characters; 0 disables the
// length check.
func CleanResponse(input, output string, minRatio float64) (string, error) {
	output = stripCodeBlock(output)
	if strings.TrimSpace(output) == "" {
		if strings.TrimSpace(input) == "" {
			return output, nil
		}
		return "", fmt.Errorf("%w: empty response", ErrSuspiciousOutput)
	}
	if minRatio > 0 {
		in := utf8.RuneCountInString(input)
		out := utf8.RuneCountInString(output)
		if in > 0 && float64(out) < float64(in)*minRatio {
			return "", fmt.Errorf("%w: response has %d characters for %d in input", ErrSuspiciousOutput, out, in)
		}
	}
	return output, nil
}
