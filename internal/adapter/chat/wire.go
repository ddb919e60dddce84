package chat

import "encoding/json"

// envelope carries the status fields every REST v1 reply shares. Login uses
// status="success", all other methods use success=true.
type envelope struct {
	Success   *bool  `json:"success,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (e envelope) ok() bool {
	if e.Success != nil {
		return *e.Success
	}
	return e.Status == "success"
}

func (e envelope) reason() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	}
	return e.ErrorType
}

type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type loginResponse struct {
	envelope
	Data struct {
		UserID    string `json:"userId"`
		AuthToken string `json:"authToken"`
	} `json:"data"`
}

type createGroupRequest struct {
	Name     string   `json:"name"`
	Members  []string `json:"members"`
	ReadOnly bool     `json:"readOnly"`
}

type createGroupResponse struct {
	envelope
	Group struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	} `json:"group"`
}

type roomUserRequest struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type cleanHistoryRequest struct {
	RoomID        string   `json:"roomId"`
	Latest        string   `json:"latest"`
	Oldest        string   `json:"oldest"`
	Inclusive     bool     `json:"inclusive"`
	ExcludePinned bool     `json:"excludePinned"`
	Users         []string `json:"users,omitempty"`
}

type postMessageRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// postMessageResponse shadows envelope.Message: on success "message" is the
// posted message object, not an error text.
type postMessageResponse struct {
	envelope
	Message json.RawMessage `json:"message"`
}
