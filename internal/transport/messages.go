package transport

// controlMessage is the inbound `/ws/<session>/control` envelope (spec
// §4.7.1). Every variant's fields are optional in the wire struct and
// validated per tag; the tagged-union shape is preserved bit-for-bit.
type controlMessage struct {
	T string `json:"t"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	StartX   float64 `json:"start_x,omitempty"`
	StartY   float64 `json:"start_y,omitempty"`
	EndX     float64 `json:"end_x,omitempty"`
	EndY     float64 `json:"end_y,omitempty"`
	Duration float64 `json:"duration,omitempty"`

	Button string `json:"button,omitempty"`
	Key    string `json:"key,omitempty"`
	Text   string `json:"text,omitempty"`
}

type controlError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// videoFrameMessage is the outbound frame-push/ultra-low-latency payload
// (spec §4.7.2/§4.7.3). Field names are preserved bit-for-bit.
type videoFrameMessage struct {
	Type        string `json:"type"`
	Data        string `json:"data"`
	PixelWidth  int    `json:"pixel_width"`
	PixelHeight int    `json:"pixel_height"`
	PointWidth  int    `json:"point_width"`
	PointHeight int    `json:"point_height"`
	Frame       uint64 `json:"frame"`
	Timestamp   int64  `json:"timestamp"`
	FPS         float64 `json:"fps"`
	Format      string `json:"format"`
}

// webrtcMessage is the tagged union over the WebRTC signaling channel
// (spec §4.7.4).
type webrtcMessage struct {
	Type      string      `json:"type"`
	Quality   string      `json:"quality,omitempty"`
	FPS       int         `json:"fps,omitempty"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate interface{} `json:"candidate,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// screenshotRequest and screenshotResponse are the `/ws/<session>/screenshot`
// request/response pair (spec §4.7.5).
type screenshotRequest struct {
	T string `json:"t"`
}

type screenshotResponse struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// logLineMessage is one streamed log entry over `/ws/<session>/logs`.
type logLineMessage struct {
	Timestamp string `json:"timestamp"`
	Process   string `json:"process"`
	PID       int    `json:"pid"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}
