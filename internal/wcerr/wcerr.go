// Package wcerr defines the closed set of error kinds the core
// reports. The audio path never returns these; it degrades and
// counts. The main-loop-facing packages (catalog, persist, calib)
// return them so callers can branch with errors.Is.
package wcerr

import "errors"

var (
	ErrInvalidWav         = errors.New("invalid wav: header malformed or chunk out of range")
	ErrFlashBusy          = errors.New("flash busy: memory-mapping suspended")
	ErrNoConfigSpace      = errors.New("no config space: save found no clean sector")
	ErrFlashError         = errors.New("flash error: hardware status reported a fault")
	ErrCalibrationAborted = errors.New("calibration aborted")
	ErrTimeout            = errors.New("timeout: flash operation exceeded budget")
	ErrAudioUnderrun      = errors.New("audio underrun: isr raced the fifo")
)
