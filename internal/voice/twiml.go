// Package voice handles Twilio voice webhooks and the JSON voice API.
package voice

import (
	"encoding/xml"
	"net/http"
)

// Response represents a TwiML <Response> document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say represents a TwiML <Say> verb.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather represents a TwiML <Gather> verb collecting speech.
type Gather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr"`
	Method              string   `xml:"method,attr"`
	Language            string   `xml:"language,attr,omitempty"`
	SpeechTimeout       string   `xml:"speechTimeout,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr,omitempty"`
	Say                 *Say
}

// Hangup represents a TwiML <Hangup> verb.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Reject represents a TwiML <Reject> verb.
type Reject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

// NewResponse creates a TwiML response from verbs.
func NewResponse(verbs ...any) *Response {
	return &Response{Verbs: verbs}
}

// Render encodes the response as a TwiML document.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.MarshalIndent(r, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

// writeTwiML writes a TwiML response. Encoding failures fall back to a bare hangup.
func writeTwiML(w http.ResponseWriter, resp *Response) {
	body, err := resp.Render()
	if err != nil {
		body = []byte(xml.Header + "<Response><Hangup/></Response>")
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
