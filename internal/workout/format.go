package workout

import "fmt"

// FormatElapsed renders seconds as hh:mm:ss.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// FormatDistance switches to meters below one kilometer.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(km*1000))
	}
	return fmt.Sprintf("%d km", int(km))
}

func MpsToKmh(mps float64) float64 {
	return mps * 3.6
}
