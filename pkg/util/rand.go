package util

import (
	"fmt"
	"math/rand"
)

// RandomServerSuffix returns a random five digit suffix in [10000, 99999],
// used when naming provisioned server pods.
func RandomServerSuffix() string {
	return fmt.Sprintf("%d", 10000+rand.Intn(90000))
}
