// Package lossdetector implements an algorithm that estimates lost packets and images.
package lossdetector

// LossDetector estimates lost packets and images from gaps in packet numbers.
// Estimates are heuristic: a gap can span zero or more image boundaries,
// and reordered datagrams are not recognized as such.
//
// The zero value expects packet number 1 and image number 0,
// which is the state of a peripheral that has just been commanded.
type LossDetector struct {
	lastPacketNumber uint32
	lastImageNumber  uint32
}

// Reset restores the initial state.
func (d *LossDetector) Reset() {
	d.lastPacketNumber = 0
	d.lastImageNumber = 0
}

// Process processes the numbers of a datagram.
// It returns the number of lost packets and an estimate of lost images.
// lostPackets is zero when there's no gap.
func (d *LossDetector) Process(packetNumber uint32, imageNumber uint32) (lostPackets uint64, lostImages uint64) {
	expected := uint64(d.lastPacketNumber) + 1

	if uint64(packetNumber) > expected {
		lostPackets = uint64(packetNumber) - expected

		// the in-progress image and all images until the current one
		// are considered lost.
		diff := int64(imageNumber) - int64(d.lastImageNumber) + 1
		if diff > 0 {
			lostImages = uint64(diff)
		}
	}

	d.lastPacketNumber = packetNumber
	d.lastImageNumber = imageNumber

	return lostPackets, lostImages
}

// ExpectedPacketNumber returns the next expected packet number.
func (d *LossDetector) ExpectedPacketNumber() uint64 {
	return uint64(d.lastPacketNumber) + 1
}
