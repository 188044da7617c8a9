package graph

import "encoding/base64"

// Forwarded messages carry the original as an attached .eml file.
const (
	forwardSubject        = "Forwarded email"
	forwardBody           = "The original message is attached unmodified."
	forwardAttachmentName = "original.eml"
	forwardContentType    = "message/rfc822"
)

// sendMailRequest is the request body for the Graph sendMail endpoint.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject      string           `json:"subject"`
	Body         messageBody      `json:"body"`
	ToRecipients []recipient      `json:"toRecipients"`
	Attachments  []fileAttachment `json:"attachments"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

// tokenResponse is the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// graphErrorResponse is the error envelope returned by Graph.
type graphErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildForwardRequest wraps raw as an attachment of a new message to address.
func buildForwardRequest(address string, raw []byte) *sendMailRequest {
	return &sendMailRequest{
		Message: sendMailMessage{
			Subject: forwardSubject,
			Body: messageBody{
				ContentType: "text",
				Content:     forwardBody,
			},
			ToRecipients: []recipient{
				{EmailAddress: emailAddress{Address: address}},
			},
			Attachments: []fileAttachment{{
				ODataType:    "#microsoft.graph.fileAttachment",
				Name:         forwardAttachmentName,
				ContentType:  forwardContentType,
				ContentBytes: base64.StdEncoding.EncodeToString(raw),
			}},
		},
		SaveToSentItems: false,
	}
}
