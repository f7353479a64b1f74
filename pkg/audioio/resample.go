package audioio

import "math"

// Resample converts mono samples from one rate to another by linear
// interpolation. Speech survives this well enough for recognition.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := len(samples) * to / from
	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = clamp16(a + (pos-float64(j))*(b-a))
	}
	return out
}

// RMS returns the root mean square of samples in int16 units.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// SilenceFloorDB is the lowest level LevelDB reports.
const SilenceFloorDB = -60.0

// LevelDB returns the level of samples in dBFS, floored at SilenceFloorDB.
func LevelDB(samples []int16) float64 {
	rms := RMS(samples)
	if rms <= 0 {
		return SilenceFloorDB
	}
	return math.Max(20*math.Log10(rms/32768), SilenceFloorDB)
}

// dcThreshold is the mean offset above which RemoveDC subtracts it.
const dcThreshold = 100

// RemoveDC subtracts the mean from samples when it exceeds dcThreshold.
// Samples are returned unchanged otherwise.
func RemoveDC(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))
	if math.Abs(mean) <= dcThreshold {
		return samples
	}
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clamp16(float64(s) - mean)
	}
	return out
}

// channelDiffThreshold is the mean |L-R| above which the channels are
// treated as different signals.
const channelDiffThreshold = 200

// PickChannel reduces interleaved stereo to mono. When the channels differ
// noticeably the louder one is kept, otherwise the left. Other channel
// counts keep the first channel.
func PickChannel(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	left := make([]int16, frames)
	for i := range left {
		left[i] = samples[i*channels]
	}
	if channels != 2 || frames == 0 {
		return left
	}

	right := make([]int16, frames)
	var diff float64
	for i := range right {
		right[i] = samples[i*2+1]
		diff += math.Abs(float64(left[i]) - float64(right[i]))
	}
	if diff/float64(frames) > channelDiffThreshold && RMS(right) > RMS(left) {
		return right
	}
	return left
}

// Prepare converts a chunk to mono 16-bit PCM at rate with DC offset
// removed, ready for a speech model.
func Prepare(chunk AudioChunk, rate int) []int16 {
	mono := PickChannel(chunk.Samples, chunk.Channels)
	mono = RemoveDC(mono)
	if chunk.SampleRate > 0 && chunk.SampleRate != rate {
		mono = Resample(mono, chunk.SampleRate, rate)
	}
	return mono
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
