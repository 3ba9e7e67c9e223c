package blocking

// soundex returns the classic four-character American Soundex code of a
// word, or "" when the word contains no letters. Non-ASCII letters are
// skipped; H and W are transparent between consonants with the same code.
func soundex(word string) string {
	code := make([]byte, 0, 4)
	var prev byte
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			continue
		}
		d := soundexDigit(c)
		if len(code) == 0 {
			code = append(code, c)
			prev = d
			continue
		}
		switch {
		case d == 0:
			// Vowels (and Y) separate runs of the same digit.
			prev = 0
		case d == soundexSkip:
			// H and W do not reset the previous digit.
		case d != prev:
			code = append(code, '0'+d)
			prev = d
			if len(code) == 4 {
				return string(code)
			}
		}
	}
	if len(code) == 0 {
		return ""
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

const soundexSkip = 7

func soundexDigit(c byte) byte {
	switch c {
	case 'B', 'F', 'P', 'V':
		return 1
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return 2
	case 'D', 'T':
		return 3
	case 'L':
		return 4
	case 'M', 'N':
		return 5
	case 'R':
		return 6
	case 'H', 'W':
		return soundexSkip
	}
	return 0
}
