package xrayradar

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// culpritFrame returns the innermost frame that does not belong to the SDK.
func culpritFrame(stacktrace *Stacktrace, isSDK FrameMatcher) *Frame {
	if stacktrace == nil {
		return nil
	}
	for i := len(stacktrace.Frames) - 1; i >= 0; i-- {
		frame := &stacktrace.Frames[i]
		if isSDK != nil && isSDK(*frame) {
			continue
		}
		return frame
	}
	return nil
}

// Fingerprint computes the grouping key of an event. With an exception it
// depends on the exception type and the file and line of the culprit frame;
// without one, on the message text.
func Fingerprint(exception *Exception, message string, isSDK FrameMatcher) []string {
	var key string
	if exception != nil {
		key = exception.Type + "|"
		if frame := culpritFrame(exception.Stacktrace, isSDK); frame != nil {
			key += frame.Filename + ":" + strconv.Itoa(frame.Lineno)
		}
	} else {
		key = "message|" + message
	}
	sum := sha256.Sum256([]byte(key))
	return []string{hex.EncodeToString(sum[:16])}
}
