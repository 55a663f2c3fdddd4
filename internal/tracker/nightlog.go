package tracker

import (
	"time"

	"github.com/claude/phasewatch/internal/models"
)

const (
	// MaxEpochs is the capacity of the sleep/wake log in minutes (8 hours).
	MaxEpochs = 480

	// AwakeningThresholdMin is the wake run length that counts as an awakening.
	AwakeningThresholdMin = 5

	logBytes = MaxEpochs / 8
)

// NightLog accumulates one night of classified epochs.
type NightLog struct {
	log   [logBytes]byte
	epoch int

	onset  uint32
	offset uint32

	sleepMin   uint16
	wakeMin    uint16
	darkMin    uint16
	awakenings uint8

	active   bool
	complete bool

	now func() time.Time
}

// NewNightLog returns an idle log. A nil clock selects time.Now.
func NewNightLog(now func() time.Time) *NightLog {
	if now == nil {
		now = time.Now
	}
	return &NightLog{now: now}
}

// Start clears the log and counters and begins tracking.
func (l *NightLog) Start() {
	now := l.now
	*l = NightLog{now: now, active: true}
}

// End stops tracking and marks the night ready for review.
func (l *NightLog) End() {
	l.active = false
	l.complete = true
}

// Active reports whether a session is being tracked.
func (l *NightLog) Active() bool { return l.active }

// Complete reports whether the last session has ended.
func (l *NightLog) Complete() bool { return l.complete }

// Epoch returns the index the next update will write.
func (l *NightLog) Epoch() int { return l.epoch }

// Bit reports whether the given epoch was classified as sleep.
func (l *NightLog) Bit(epoch int) bool {
	if epoch < 0 || epoch >= MaxEpochs {
		return false
	}
	return l.log[epoch/8]&(1<<(epoch%8)) != 0
}

func (l *NightLog) setBit(epoch int, asleep bool) {
	if epoch < 0 || epoch >= MaxEpochs {
		return
	}
	if asleep {
		l.log[epoch/8] |= 1 << (epoch % 8)
	} else {
		l.log[epoch/8] &^= 1 << (epoch % 8)
	}
}

// Update records one classified epoch.
func (l *NightLog) Update(asleep bool, light LightClass) {
	l.setBit(l.epoch, asleep)

	if asleep {
		ts := uint32(l.now().Unix())
		if l.onset == 0 {
			l.onset = ts
		}
		l.offset = ts

		l.sleepMin++
		if light == LightDark {
			l.darkMin++
		}
	} else {
		l.wakeMin++
		if l.wakeRunEndsHere() {
			l.awakenings++
		}
	}

	l.epoch++
	if l.epoch >= MaxEpochs {
		l.epoch = 0
	}
}

// wakeRunEndsHere reports whether the current wake epoch closes a run of
// AwakeningThresholdMin wake epochs that directly follows a sleep epoch.
func (l *NightLog) wakeRunEndsHere() bool {
	if l.epoch < AwakeningThresholdMin {
		return false
	}
	for i := 1; i <= AwakeningThresholdMin; i++ {
		if l.Bit(l.epoch - i) {
			return false
		}
	}
	if l.epoch <= AwakeningThresholdMin {
		return false
	}
	return l.Bit(l.epoch - AwakeningThresholdMin - 1)
}

// Efficiency returns sleep minutes as a percentage of time in bed, capped at
// 100. It is 0 until both onset and offset are known.
func (l *NightLog) Efficiency() uint16 {
	if l.onset == 0 || l.offset == 0 {
		return 0
	}
	inBed := (l.offset - l.onset) / 60
	if inBed == 0 {
		return 0
	}
	eff := uint32(l.sleepMin) * 100 / inBed
	if eff > 100 {
		eff = 100
	}
	return uint16(eff)
}

// Stats is a read-only view of the running counters.
type Stats struct {
	Onset      uint32 `json:"onset"`
	Offset     uint32 `json:"offset"`
	SleepMin   uint16 `json:"sleep_min"`
	WakeMin    uint16 `json:"wake_min"`
	DarkMin    uint16 `json:"dark_min"`
	Awakenings uint8  `json:"awakenings"`
}

// Stats returns the current counters.
func (l *NightLog) Stats() Stats {
	return Stats{
		Onset:      l.onset,
		Offset:     l.offset,
		SleepMin:   l.sleepMin,
		WakeMin:    l.wakeMin,
		DarkMin:    l.darkMin,
		Awakenings: l.awakenings,
	}
}

// Night converts the log into a completed night summary. Efficiency and
// light quality are relative to scored minutes (sleep + wake).
func (l *NightLog) Night() models.SleepNight {
	total := uint32(l.sleepMin) + uint32(l.wakeMin)
	var eff, light uint8
	if total > 0 {
		eff = uint8(uint32(l.sleepMin) * 100 / total)
		light = uint8(uint32(l.darkMin) * 100 / total)
	}
	return models.SleepNight{
		Onset:        l.onset,
		Offset:       l.offset,
		DurationMin:  l.sleepMin,
		Efficiency:   eff,
		WASOMin:      l.wakeMin,
		Awakenings:   l.awakenings,
		LightQuality: light,
		Valid:        true,
	}
}
