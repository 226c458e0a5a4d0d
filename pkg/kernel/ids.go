package kernel

type OrgID string

func NewOrgID(id string) OrgID { return OrgID(id) }
func (o OrgID) String() string { return string(o) }
func (o OrgID) IsEmpty() bool  { return string(o) == "" }

type FlowID string

func NewFlowID(id string) FlowID { return FlowID(id) }
func (f FlowID) String() string  { return string(f) }
func (f FlowID) IsEmpty() bool   { return string(f) == "" }

type ChannelID string

func NewChannelID(id string) ChannelID { return ChannelID(id) }
func (c ChannelID) String() string     { return string(c) }
func (c ChannelID) IsEmpty() bool      { return string(c) == "" }

type ExecutionID string

func NewExecutionID(id string) ExecutionID { return ExecutionID(id) }
func (e ExecutionID) String() string       { return string(e) }
func (e ExecutionID) IsEmpty() bool        { return string(e) == "" }

type MessageID string

func NewMessageID(id string) MessageID { return MessageID(id) }
func (m MessageID) String() string     { return string(m) }
func (m MessageID) IsEmpty() bool      { return string(m) == "" }

// CustomerID es el número de teléfono del cliente (wa_id)
type CustomerID string

func NewCustomerID(id string) CustomerID { return CustomerID(id) }
func (c CustomerID) String() string      { return string(c) }
func (c CustomerID) IsEmpty() bool       { return string(c) == "" }
