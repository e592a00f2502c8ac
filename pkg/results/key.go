package results

import (
	"fmt"
	"time"
)

// KeyTimeLayout formats the save time of a results key, e.g. 2024-01-01_12h00.00.000.
const KeyTimeLayout = "2006-01-02_15h04.05.000"

// Key names a results payload of experiment name saved at t, in t's location.
func Key(name string, t time.Time) string {
	return fmt.Sprintf("%s_SESSION_%s.csv", name, t.Format(KeyTimeLayout))
}
