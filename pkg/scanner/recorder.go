package scanner

import "time"

// Recorder receives scan engine measurements
// Implementations must be safe for concurrent use; calls come from port tasks.
type Recorder interface {
	// PortScanned is called once per port with its status, the failure reason for
	// closed ports, and the connect round-trip time
	PortScanned(status Status, reason string, latency time.Duration)

	// BannerCollected is called once per open port when banner capture is enabled
	BannerCollected(captured bool)

	// SlotsInUse reports the number of held concurrency slots after each change
	SlotsInUse(n int)

	// ScanFinished is called once when the coordinator has drained every task
	ScanFinished(ports int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) PortScanned(Status, string, time.Duration) {}
func (nopRecorder) BannerCollected(bool)                      {}
func (nopRecorder) SlotsInUse(int)                            {}
func (nopRecorder) ScanFinished(int, time.Duration)           {}
