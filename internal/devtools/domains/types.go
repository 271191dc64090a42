/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package domains

import "encoding/json"

type TargetInfo struct {
	TargetID         string `json:"targetId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Attached         bool   `json:"attached"`
	BrowserContextID string `json:"browserContextId,omitempty"`
}

type AttachedToTarget struct {
	SessionID          string     `json:"sessionId"`
	TargetInfo         TargetInfo `json:"targetInfo"`
	WaitingForDebugger bool       `json:"waitingForDebugger"`
}

type DetachedFromTarget struct {
	SessionID string `json:"sessionId"`
	TargetID  string `json:"targetId,omitempty"`
}

type UserAgentBrand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

type UserAgentMetadata struct {
	Brands          []UserAgentBrand `json:"brands,omitempty"`
	FullVersion     string           `json:"fullVersion,omitempty"`
	Platform        string           `json:"platform"`
	PlatformVersion string           `json:"platformVersion"`
	Architecture    string           `json:"architecture"`
	Model           string           `json:"model"`
	Mobile          bool             `json:"mobile"`
}

// UserAgent describes a Network.setUserAgentOverride request.
// Metadata is only sent to browsers whose protocol supports it.
type UserAgent struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Metadata       *UserAgentMetadata
}

type Request struct {
	URL      string            `json:"url"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers"`
	PostData string            `json:"postData,omitempty"`
}

type RequestWillBeSent struct {
	RequestID   string  `json:"requestId"`
	LoaderID    string  `json:"loaderId"`
	DocumentURL string  `json:"documentURL"`
	Request     Request `json:"request"`
	Timestamp   float64 `json:"timestamp"`
	Type        string  `json:"type,omitempty"`
}

type Response struct {
	URL        string            `json:"url"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	MimeType   string            `json:"mimeType"`
}

type ResponseReceived struct {
	RequestID string   `json:"requestId"`
	LoaderID  string   `json:"loaderId"`
	Timestamp float64  `json:"timestamp"`
	Type      string   `json:"type"`
	Response  Response `json:"response"`
}

type LogEntry struct {
	Source     string  `json:"source"`
	Level      string  `json:"level"`
	Text       string  `json:"text"`
	Timestamp  float64 `json:"timestamp"`
	URL        string  `json:"url,omitempty"`
	LineNumber int     `json:"lineNumber,omitempty"`
}

type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
}

type ExceptionDetails struct {
	ExceptionID  int           `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int           `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	URL          string        `json:"url,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

type BindingCalled struct {
	Name               string `json:"name"`
	Payload            string `json:"payload"`
	ExecutionContextID int    `json:"executionContextId"`
}

type ConsoleAPICalled struct {
	Type               string         `json:"type"`
	Args               []RemoteObject `json:"args"`
	ExecutionContextID int            `json:"executionContextId"`
	Timestamp          float64        `json:"timestamp"`
}

type ExceptionThrown struct {
	Timestamp        float64          `json:"timestamp"`
	ExceptionDetails ExceptionDetails `json:"exceptionDetails"`
}
