package triage

import (
	"fmt"
	"math"
	"time"

	"github.com/JagaGrup/Sentinel/internal/models"
)

// Anomaly detection thresholds.
const (
	timeAnomalyThreshold     = 2   // hours outside the typical range
	lengthDeviationThreshold = 2.0 // standard deviations
	styleDeviationThreshold  = 0.3 // 30% relative deviation
)

// DetectAnomalies compares a message against the sender's baseline. An empty
// baseline produces no anomalies: a new member posting a URL on day one is
// not behaving unusually, there is simply nothing to compare against.
func DetectAnomalies(text string, timestamp time.Time, hasURL bool, baseline models.BaselineSnapshot) []models.Anomaly {
	if baseline.Empty() {
		return nil
	}

	var anomalies []models.Anomaly

	if a := checkTimeAnomaly(timestamp.Hour(), baseline.TypicalHours); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := checkLengthAnomaly(len([]rune(text)), baseline.AvgMessageLength, baseline.StdMessageLength); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := checkFirstTimeURL(hasURL, baseline.URLSharingRate, baseline.TotalMessages); a != nil {
		anomalies = append(anomalies, *a)
	}
	if a := checkEmojiAnomaly(EmojiRate(text), baseline.EmojiUsageRate); a != nil {
		anomalies = append(anomalies, *a)
	}

	return anomalies
}

func checkTimeAnomaly(messageHour int, typicalHours []int) *models.Anomaly {
	if len(typicalHours) == 0 {
		return nil
	}

	minDistance := 24
	for _, h := range typicalHours {
		if h == messageHour {
			return nil
		}
		// Circular distance on the 24h clock
		d := messageHour - h
		if d < 0 {
			d = -d
		}
		if 24-d < d {
			d = 24 - d
		}
		if d < minDistance {
			minDistance = d
		}
	}

	if minDistance < timeAnomalyThreshold {
		return nil
	}

	return &models.Anomaly{
		AnomalyType:    "time_anomaly",
		Description:    fmt.Sprintf("Message sent at unusual hour (%d:00)", messageHour),
		DeviationScore: math.Min(float64(minDistance)/12, 1.0),
	}
}

func checkLengthAnomaly(messageLength int, avgLength, stdLength float64) *models.Anomaly {
	if avgLength == 0 {
		return nil
	}
	if stdLength == 0 {
		stdLength = avgLength * 0.3
	}

	zScore := math.Abs(float64(messageLength)-avgLength) / stdLength
	if zScore < lengthDeviationThreshold {
		return nil
	}

	direction := "longer"
	if float64(messageLength) < avgLength {
		direction = "shorter"
	}

	return &models.Anomaly{
		AnomalyType:    "length_anomaly",
		Description:    fmt.Sprintf("Message is significantly %s than usual", direction),
		DeviationScore: math.Min(zScore/5, 1.0),
	}
}

func checkFirstTimeURL(hasURL bool, urlSharingRate float64, totalMessages int) *models.Anomaly {
	if !hasURL {
		return nil
	}
	// Needs enough history to call the URL unusual
	if urlSharingRate != 0 || totalMessages < 10 {
		return nil
	}

	return &models.Anomaly{
		AnomalyType:    "first_time_url",
		Description:    "User sharing URL for first time",
		DeviationScore: 0.7,
	}
}

func checkEmojiAnomaly(currentRate, baselineRate float64) *models.Anomaly {
	if baselineRate == 0 && currentRate == 0 {
		return nil
	}

	var diff float64
	if baselineRate == 0 {
		diff = currentRate
	} else {
		diff = math.Abs(currentRate-baselineRate) / math.Max(baselineRate, 0.01)
	}

	if diff < styleDeviationThreshold {
		return nil
	}

	return &models.Anomaly{
		AnomalyType:    "emoji_anomaly",
		Description:    "Unusual emoji usage pattern",
		DeviationScore: math.Min(diff, 1.0),
	}
}

// EmojiRate returns the fraction of the text made up of emoji runes.
func EmojiRate(text string) float64 {
	if text == "" {
		return 0
	}
	matches := emojiPattern.FindAllString(text, -1)
	return float64(len(matches)) / float64(len([]rune(text)))
}
