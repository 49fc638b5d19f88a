package score

import "strings"

// Text alignment between the reference transcript and the recognized text.
//
// Both sides are normalized (case-folded, punctuation stripped) and matched
// with a longest-common-subsequence over tokens: a reference word passes iff
// it participates in the LCS. This is deterministic and tolerant of inserted,
// dropped, or substituted words anywhere in the utterance, which makes it
// stricter than a pure bag-of-words match but far more forgiving than
// position-exact comparison.

// normalizeToken lowercases a token and strips everything that is not a
// letter, digit, or apostrophe.
func normalizeToken(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			b.WriteRune(r)
		case r > 127:
			// Non-ASCII letters pass through untouched.
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenize splits free text into normalized tokens, dropping empties.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := normalizeToken(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// alignWords returns one pass/fail verdict per reference word.
func alignWords(reference []string, recognized []string) []bool {
	ref := make([]string, len(reference))
	for i, w := range reference {
		ref[i] = normalizeToken(w)
	}

	pass := make([]bool, len(ref))
	if len(ref) == 0 || len(recognized) == 0 {
		return pass
	}

	// Standard LCS table over the normalized token sequences.
	n, m := len(ref), len(recognized)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if ref[i-1] == recognized[j-1] {
				lcs[i][j] = lcs[i-1][j-1] + 1
			} else if lcs[i-1][j] >= lcs[i][j-1] {
				lcs[i][j] = lcs[i-1][j]
			} else {
				lcs[i][j] = lcs[i][j-1]
			}
		}
	}

	// Backtrack to mark which reference words made it into the LCS.
	for i, j := n, m; i > 0 && j > 0; {
		switch {
		case ref[i-1] == recognized[j-1]:
			pass[i-1] = true
			i--
			j--
		case lcs[i-1][j] >= lcs[i][j-1]:
			i--
		default:
			j--
		}
	}

	return pass
}
