package detector

import "github.com/straja-ai/detectors/internal/redact"

// Observer receives lifecycle and failure notifications from detectors.
// Detectors never write to the console themselves.
type Observer interface {
	DetectorLoaded(info Info)
	ClassifierFailed(info Info, err error)
}

// LogObserver reports through the redacting logger.
type LogObserver struct{}

func (LogObserver) DetectorLoaded(info Info) {
	redact.Logf("loading detector: %s", info.Name)
}

func (LogObserver) ClassifierFailed(info Info, err error) {
	redact.Logf("detector %s: classifier failed, no judgment for batch: %v", info.Name, err)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) DetectorLoaded(Info)          {}
func (NopObserver) ClassifierFailed(Info, error) {}

// MultiObserver fans a notification out to several observers.
type MultiObserver []Observer

func (m MultiObserver) DetectorLoaded(info Info) {
	for _, o := range m {
		if o != nil {
			o.DetectorLoaded(info)
		}
	}
}

func (m MultiObserver) ClassifierFailed(info Info, err error) {
	for _, o := range m {
		if o != nil {
			o.ClassifierFailed(info, err)
		}
	}
}
