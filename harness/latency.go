package harness

import (
	"encoding/binary"
	"fmt"
	"os"
)

// DefaultLatencyDevice is the PM QoS device that bounds CPU wakeup latency.
const DefaultLatencyDevice = "/dev/cpu_dma_latency"

// LatencyHold keeps a zero CPU DMA latency request active. While it is
// held the CPUs stay out of deep idle states. The kernel drops the request
// when the file is closed.
type LatencyHold struct {
	f *os.File
}

// HoldLowLatency opens device and requests a maximum wakeup latency of
// 0us. Writing the device usually requires root.
func HoldLowLatency(device string) (*LatencyHold, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open PM QoS device: %w", err)
	}

	if err := binary.Write(f, binary.NativeEndian, int32(0)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write PM QoS target to %s: %w", device, err)
	}

	return &LatencyHold{f: f}, nil
}

// Release closes the device, restoring the default latency target.
func (h *LatencyHold) Release() error {
	return h.f.Close()
}
