package dto

// SignInRequest is the request body for every role's login.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=128" sanitize:"-"`
}

// VerifyRequest carries the e-mailed one-time code.
type VerifyRequest struct {
	Email string `json:"email" binding:"required,email,max=254"`
	OTP   string `json:"otp" binding:"required,otp"`
}

// SignUpRequest is the request body for user registration.
type SignUpRequest struct {
	Name            string `json:"name" binding:"required,max=80"`
	Email           string `json:"email" binding:"required,email,max=254"`
	Phone           string `json:"phone" binding:"omitempty,max=20"`
	Password        string `json:"password" binding:"required,min=6,max=128" sanitize:"-"`
	ConfirmPassword string `json:"confirm_password" binding:"required" sanitize:"-"`
	ReferralCode    string `json:"referral_code" binding:"omitempty,safe_id,max=32"`
}

// SignUpResponse is returned once the backend has e-mailed the signup code.
type SignUpResponse struct {
	Email string `json:"email"`
}

// TransitionRequest asks to move an order to Target. From is the status
// the UI showed; it is only used when no mounted queue holds the order.
type TransitionRequest struct {
	Target  string `json:"target" binding:"required,max=32"`
	From    string `json:"from" binding:"omitempty,max=32"`
	Receipt string `json:"receipt" binding:"omitempty,safe_url,max=2048" sanitize:"-"`
	Remark  string `json:"remark" binding:"omitempty,max=500"`
}

// WithdrawRequest is the request body for a withdrawal. Amount is a
// decimal string to keep token precision.
type WithdrawRequest struct {
	Amount  string `json:"amount" binding:"required,decimal_amount"`
	Address string `json:"address" binding:"required,max=128"`
}

// RaiseTicketRequest opens a support ticket. Subject and message are
// escaped by the ticket service. URLs are passed through as given.
type RaiseTicketRequest struct {
	Subject    string `json:"subject" binding:"required,max=120" sanitize:"-"`
	Message    string `json:"message" binding:"required,max=2000" sanitize:"-"`
	OrderID    string `json:"order_id" binding:"omitempty,safe_id,max=64"`
	Attachment string `json:"attachment" binding:"omitempty,safe_url,max=2048" sanitize:"-"`
}

// ManageTicketRequest moves a ticket from From to Status.
type ManageTicketRequest struct {
	Status string `json:"status" binding:"required,max=32"`
	From   string `json:"from" binding:"required,max=32"`
	Remark string `json:"remark" binding:"omitempty,max=500" sanitize:"-"`
}

// PageQuery is the page selection of every listing endpoint.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// OrderQuery selects one page of an order queue.
type OrderQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,max=32"`
}

// AuditQuery limits the action journal listing.
type AuditQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// WithdrawResponse echoes the placed withdrawal.
type WithdrawResponse struct {
	ID      string `json:"id,omitempty"`
	Amount  string `json:"amount"`
	Address string `json:"address"`
	Status  string `json:"status"`
}
