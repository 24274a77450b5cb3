package services

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"lifeline/models"
	"lifeline/utils"
)

const maxSMSLength = 320

// AlertTitle is the short headline used for push and email subjects.
func AlertTitle(payload models.EmergencyPayload) string {
	if payload.Kind == models.PayloadStandDown {
		return "✅ Emergency cancelled"
	}
	return "🚨 EMERGENCY ALERT"
}

// FormatTextMessage renders the SMS / push body.
func FormatTextMessage(payload models.EmergencyPayload) string {
	var msg string
	if payload.Kind == models.PayloadStandDown {
		msg = fmt.Sprintf("UPDATE: %s has cancelled their emergency alert. No further action is needed.", payload.UserName)
		if payload.Reason != "" {
			msg += " Reason: " + payload.Reason
		}
		return utils.TruncateString(msg, maxSMSLength)
	}

	msg = fmt.Sprintf("EMERGENCY: %s needs help. ", payload.UserName)
	if loc := payload.Location; loc != nil {
		msg += fmt.Sprintf("Location: %s %s (±%.0fm). ", loc.HumanReadableAddress, loc.MapsURL(), loc.AccuracyMeters)
	} else {
		msg += "Location unavailable. "
	}
	msg += fmt.Sprintf("Started %s UTC.", payload.StartedAt.UTC().Format("15:04"))
	return utils.TruncateString(msg, maxSMSLength)
}

// FormatVoiceTwiML renders the spoken message for an automated call.
func FormatVoiceTwiML(payload models.EmergencyPayload) string {
	var spoken string
	if payload.Kind == models.PayloadStandDown {
		spoken = fmt.Sprintf("This is Lifeline. %s has cancelled their emergency alert. No action is needed.", payload.UserName)
	} else {
		spoken = fmt.Sprintf("This is an emergency alert from Lifeline. %s needs help.", payload.UserName)
		if loc := payload.Location; loc != nil {
			spoken += " Their last known location is " + loc.HumanReadableAddress + "."
		}
		spoken += " A text message with details has been sent to you."
	}

	return `<Response><Say voice="alice" loop="2">` + xmlEscape(spoken) + `</Say></Response>`
}

// FormatEmailBody renders a plain HTML email.
func FormatEmailBody(payload models.EmergencyPayload) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h2>" + AlertTitle(payload) + "</h2>")
	b.WriteString("<p>" + xmlEscape(FormatTextMessage(payload)) + "</p>")
	if loc := payload.Location; loc != nil && payload.Kind == models.PayloadAlert {
		b.WriteString(fmt.Sprintf(`<p><a href="%s">Open map</a> (accuracy: %s)</p>`, loc.MapsURL(), loc.AccuracyTier))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// PushData is the data block attached to push messages.
func PushData(payload models.EmergencyPayload) map[string]string {
	data := map[string]string{
		"type":      "emergency_" + string(payload.Kind),
		"episodeId": payload.EpisodeID,
		"userId":    payload.UserID,
		"userName":  payload.UserName,
		"startedAt": payload.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if loc := payload.Location; loc != nil {
		data["latitude"] = fmt.Sprintf("%.6f", loc.Latitude)
		data["longitude"] = fmt.Sprintf("%.6f", loc.Longitude)
		data["accuracy"] = fmt.Sprintf("%.1f", loc.AccuracyMeters)
		data["address"] = loc.HumanReadableAddress
	}
	return data
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
