package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b|\b20\d{2}-\d{2}-\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(inr|rs\.?|usd|eur|gbp)\b|[₹$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{2,3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reGSTIN  = regexp.MustCompile(`\b\d{2}[a-z]{5}\d{4}[a-z][1-9a-z]z[0-9a-z]\b`)
	rePAN    = regexp.MustCompile(`\b[a-z]{5}\d{4}[a-z]\b`)
)

// heuristicConfidence scores decoded text by the trade-document artifacts it contains.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reGSTIN.MatchString(txtL) || rePAN.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights tesseract's own word confidence higher when present.
func blendConfidence(wordConf, heurConf float32) float32 {
	conf := heurConf
	if wordConf > 0 {
		conf = 0.7*wordConf + 0.3*heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
