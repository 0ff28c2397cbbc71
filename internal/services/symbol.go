package services

import (
	"errors"
	"strconv"
)

var (
	symbolWeights  = [8]int{4, 8, 5, 10, 9, 7, 3, 6}
	symbolSuffixes = [11]string{"00", "50", "09", "40", "07", "30", "05", "20", "03", "10", "01"}
)

var ErrReferenceCodeRange = errors.New("reference code needs a positive id of at most 8 digits")

// GenerateReferenceCode derives the checksummed variable symbol a tutor puts
// on bank transfers. The id digits are kept and a two-digit check suffix is
// appended.
func GenerateReferenceCode(id int64) (int64, error) {
	if id <= 0 {
		return 0, ErrReferenceCodeRange
	}
	digits := strconv.FormatInt(id, 10)
	if len(digits) > len(symbolWeights) {
		return 0, ErrReferenceCodeRange
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		sum += d * symbolWeights[i]
	}

	code, err := strconv.ParseInt(digits+symbolSuffixes[sum%11], 10, 64)
	if err != nil {
		return 0, err
	}
	return code, nil
}
