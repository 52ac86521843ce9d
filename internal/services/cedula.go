package services

const (
	cedulaLength   = 10
	provinceCount  = 24
	cedulaBodySize = 9
)

var cedulaCoefficients = [cedulaBodySize]int{2, 1, 2, 1, 2, 1, 2, 1, 2}

// IsValidCedula reports whether input is a well-formed Ecuadorian cédula:
// ten digits, a province code between 01 and 24 and a matching modulo-10
// check digit. Malformed input is simply invalid.
func IsValidCedula(input string) bool {
	if len(input) != cedulaLength {
		return false
	}

	var digits [cedulaLength]int
	for i := 0; i < cedulaLength; i++ {
		c := input[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}

	province := digits[0]*10 + digits[1]
	if province < 1 || province > provinceCount {
		return false
	}

	total := 0
	for i, coef := range cedulaCoefficients {
		product := digits[i] * coef
		if product >= 10 {
			product -= 9
		}
		total += product
	}

	nextTen := (total + 9) / 10 * 10
	expected := nextTen - total
	check := digits[cedulaBodySize]

	return check == expected || (check == 0 && expected == 10)
}
