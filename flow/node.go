package flow

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Node Entity
// ============================================================================

// Node es un paso del flujo. Position es sólo presentación del editor;
// el motor la ignora por completo.
type Node struct {
	ID       string     `json:"id"`
	Type     NodeType   `json:"type"`
	Label    string     `json:"label,omitempty"`
	Position Position   `json:"position"`
	Config   NodeConfig `json:"config"`
}

// Position coordenadas 2D del nodo en el editor visual
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeType tipo de paso (conjunto cerrado)
type NodeType string

const (
	NodeTrigger NodeType = "trigger"

	NodeSendText      NodeType = "sendText"
	NodeSendImage     NodeType = "sendImage"
	NodeSendVideo     NodeType = "sendVideo"
	NodeSendAudio     NodeType = "sendAudio"
	NodeSendDocument  NodeType = "sendDocument"
	NodeSendLocation  NodeType = "sendLocation"
	NodeSendContact   NodeType = "sendContact"
	NodeSendSticker   NodeType = "sendSticker"
	NodeSendButtons   NodeType = "sendButtons"
	NodeSendList      NodeType = "sendList"
	NodeSendStampCard NodeType = "sendStampCard"

	NodeWaitForReply NodeType = "waitForReply"
	NodeCondition    NodeType = "condition"
	NodeSetVariable  NodeType = "setVariable"
	NodeLoop         NodeType = "loop"
	NodeAPICall      NodeType = "apiCall"
	NodeDelay        NodeType = "delay"

	NodeGetCustomerPhone    NodeType = "getCustomerPhone"
	NodeGetCustomerName     NodeType = "getCustomerName"
	NodeGetCustomerCountry  NodeType = "getCustomerCountry"
	NodeGetMessageTimestamp NodeType = "getMessageTimestamp"

	NodeFormatPhoneNumber NodeType = "formatPhoneNumber"
	NodeDateTime          NodeType = "dateTime"
	NodeMathOperation     NodeType = "mathOperation"
	NodeTextOperation     NodeType = "textOperation"
	NodeRandomChoice      NodeType = "randomChoice"
	NodeMarkAsRead        NodeType = "markAsRead"

	NodeEnd NodeType = "end"
)

// ============================================================================
// Node Config - Tagged Union
// ============================================================================

// NodeConfig interface que implementan todas las configuraciones de nodo.
// El tipo concreto queda determinado por Node.Type al decodificar.
type NodeConfig interface {
	Validate() error
	GetType() NodeType
}

// UnmarshalJSON decodifica el config al tipo concreto según el tag de tipo.
// Un tipo desconocido es un error de decodificación, no un error de runtime.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeType        `json:"type"`
		Label    string          `json:"label"`
		Position Position        `json:"position"`
		Config   json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Label = raw.Label
	n.Position = raw.Position

	config, err := decodeNodeConfig(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	n.Config = config
	return nil
}

func decodeNodeConfig(nodeType NodeType, raw json.RawMessage) (NodeConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var config NodeConfig
	switch nodeType {
	case NodeTrigger:
		config = &TriggerConfig{}
	case NodeSendText:
		config = &SendTextConfig{}
	case NodeSendImage, NodeSendVideo, NodeSendAudio, NodeSendDocument, NodeSendSticker:
		config = &SendMediaConfig{nodeType: nodeType}
	case NodeSendLocation:
		config = &SendLocationConfig{}
	case NodeSendContact:
		config = &SendContactConfig{}
	case NodeSendButtons:
		config = &SendButtonsConfig{}
	case NodeSendList:
		config = &SendListConfig{}
	case NodeSendStampCard:
		config = &SendStampCardConfig{}
	case NodeWaitForReply:
		config = &WaitForReplyConfig{}
	case NodeCondition:
		config = &ConditionConfig{}
	case NodeSetVariable:
		config = &SetVariableConfig{}
	case NodeLoop:
		config = &LoopConfig{}
	case NodeAPICall:
		config = &APICallConfig{}
	case NodeDelay:
		config = &DelayConfig{}
	case NodeGetCustomerPhone, NodeGetCustomerName, NodeGetCustomerCountry, NodeGetMessageTimestamp:
		config = &CustomerDataConfig{nodeType: nodeType}
	case NodeFormatPhoneNumber:
		config = &FormatPhoneConfig{}
	case NodeDateTime:
		config = &DateTimeConfig{}
	case NodeMathOperation:
		config = &MathConfig{}
	case NodeTextOperation:
		config = &TextConfig{}
	case NodeRandomChoice:
		config = &RandomChoiceConfig{}
	case NodeMarkAsRead:
		config = &MarkAsReadConfig{}
	case NodeEnd:
		config = &EndConfig{}
	default:
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}

	if err := json.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to decode %s config: %w", nodeType, err)
	}
	return config, nil
}

// ============================================================================
// Trigger Config
// ============================================================================

type TriggerConfig struct {
	Trigger
}

func (c *TriggerConfig) Validate() error {
	if c.Type == TriggerKeyword && c.Value == "" {
		return ErrInvalidNode().WithDetail("reason", "keyword trigger requires a value")
	}
	return nil
}

func (c *TriggerConfig) GetType() NodeType { return NodeTrigger }

// ============================================================================
// Send Configs
// ============================================================================

type SendTextConfig struct {
	Text string `json:"text"`
}

func (c *SendTextConfig) Validate() error {
	if c.Text == "" {
		return ErrInvalidNode().WithDetail("reason", "text is required")
	}
	return nil
}

func (c *SendTextConfig) GetType() NodeType { return NodeSendText }

// SendMediaConfig config compartida por image/video/audio/document/sticker
type SendMediaConfig struct {
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`

	nodeType NodeType
}

func (c *SendMediaConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidNode().WithDetail("reason", "media url is required")
	}
	return nil
}

func (c *SendMediaConfig) GetType() NodeType { return c.nodeType }

type SendLocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

func (c *SendLocationConfig) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return ErrInvalidNode().WithDetail("reason", "latitude out of range")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidNode().WithDetail("reason", "longitude out of range")
	}
	return nil
}

func (c *SendLocationConfig) GetType() NodeType { return NodeSendLocation }

type SendContactConfig struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

func (c *SendContactConfig) Validate() error {
	if c.Name == "" || c.PhoneNumber == "" {
		return ErrInvalidNode().WithDetail("reason", "contact name and phone_number are required")
	}
	return nil
}

func (c *SendContactConfig) GetType() NodeType { return NodeSendContact }

// ButtonOption botón de respuesta rápida; el ID es el handle de la arista
type ButtonOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type SendButtonsConfig struct {
	Header  string         `json:"header,omitempty"`
	Body    string         `json:"body"`
	Footer  string         `json:"footer,omitempty"`
	Buttons []ButtonOption `json:"buttons"`
}

func (c *SendButtonsConfig) Validate() error {
	if c.Body == "" {
		return ErrInvalidNode().WithDetail("reason", "body is required")
	}
	if len(c.Buttons) == 0 || len(c.Buttons) > 3 {
		// Límite de la API de WhatsApp: 1 a 3 botones
		return ErrInvalidNode().WithDetail("reason", "buttons must have between 1 and 3 entries")
	}
	for _, b := range c.Buttons {
		if b.ID == "" || b.Title == "" {
			return ErrInvalidNode().WithDetail("reason", "button id and title are required")
		}
	}
	return nil
}

func (c *SendButtonsConfig) GetType() NodeType { return NodeSendButtons }

// ListRow fila de lista interactiva; el ID es el handle de la arista
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

type SendListConfig struct {
	Header     string        `json:"header,omitempty"`
	Body       string        `json:"body"`
	Footer     string        `json:"footer,omitempty"`
	ButtonText string        `json:"button_text"`
	Sections   []ListSection `json:"sections"`
}

func (c *SendListConfig) Validate() error {
	if c.Body == "" {
		return ErrInvalidNode().WithDetail("reason", "body is required")
	}
	if c.ButtonText == "" {
		return ErrInvalidNode().WithDetail("reason", "button_text is required")
	}
	if len(c.Sections) == 0 {
		return ErrInvalidNode().WithDetail("reason", "sections cannot be empty")
	}
	for _, section := range c.Sections {
		if len(section.Rows) == 0 {
			return ErrInvalidNode().WithDetail("reason", "list section has no rows")
		}
		for _, row := range section.Rows {
			if row.ID == "" || row.Title == "" {
				return ErrInvalidNode().WithDetail("reason", "list row id and title are required")
			}
		}
	}
	return nil
}

func (c *SendListConfig) GetType() NodeType { return NodeSendList }

type SendStampCardConfig struct {
	Message string `json:"message,omitempty"`
}

func (c *SendStampCardConfig) Validate() error { return nil }

func (c *SendStampCardConfig) GetType() NodeType { return NodeSendStampCard }

// ============================================================================
// Wait Config
// ============================================================================

// ExpectedInput tipo de respuesta esperada por waitForReply
type ExpectedInput string

const (
	ExpectText   ExpectedInput = "text"
	ExpectNumber ExpectedInput = "number"
	ExpectButton ExpectedInput = "button"
	ExpectList   ExpectedInput = "list"
)

type WaitForReplyConfig struct {
	ExpectedType   ExpectedInput `json:"expected_type"`
	VariableName   string        `json:"variable_name"`
	TimeoutSeconds *int          `json:"timeout_seconds,omitempty"`
	RetryMessage   string        `json:"retry_message,omitempty"`
}

func (c *WaitForReplyConfig) Validate() error {
	if c.VariableName == "" {
		return ErrInvalidNode().WithDetail("reason", "variable_name is required")
	}
	switch c.ExpectedType {
	case ExpectText, ExpectNumber, ExpectButton, ExpectList, "":
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown expected_type: "+string(c.ExpectedType))
	}
	if c.TimeoutSeconds != nil && *c.TimeoutSeconds <= 0 {
		return ErrInvalidNode().WithDetail("reason", "timeout_seconds must be positive")
	}
	return nil
}

func (c *WaitForReplyConfig) GetType() NodeType { return NodeWaitForReply }

// GetExpectedType retorna el tipo esperado con default text
func (c *WaitForReplyConfig) GetExpectedType() ExpectedInput {
	if c.ExpectedType == "" {
		return ExpectText
	}
	return c.ExpectedType
}

// ============================================================================
// Condition Config
// ============================================================================

// ConditionOperator operadores soportados por las reglas de condición
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "equals"
	OpContains  ConditionOperator = "contains"
	OpGt        ConditionOperator = "gt"
	OpLt        ConditionOperator = "lt"
	OpRegex     ConditionOperator = "regex"
	OpExists    ConditionOperator = "exists"
	OpNotExists ConditionOperator = "not_exists"
)

// ConditionRule una regla del set ordenado; la primera verdadera gana
type ConditionRule struct {
	Variable     string            `json:"variable"`
	Operator     ConditionOperator `json:"operator"`
	Value        string            `json:"value,omitempty"`
	OutputHandle string            `json:"output_handle"`
}

type ConditionConfig struct {
	Conditions    []ConditionRule `json:"conditions"`
	DefaultHandle string          `json:"default_handle"`
}

func (c *ConditionConfig) Validate() error {
	if len(c.Conditions) == 0 {
		return ErrInvalidNode().WithDetail("reason", "conditions cannot be empty")
	}
	for _, rule := range c.Conditions {
		if rule.Variable == "" {
			return ErrInvalidNode().WithDetail("reason", "condition variable is required")
		}
		if rule.OutputHandle == "" {
			return ErrInvalidNode().WithDetail("reason", "condition output_handle is required")
		}
		switch rule.Operator {
		case OpEquals, OpContains, OpGt, OpLt, OpRegex, OpExists, OpNotExists:
		default:
			return ErrInvalidNode().WithDetail("reason", "unknown operator: "+string(rule.Operator))
		}
	}
	if c.DefaultHandle == "" {
		return ErrInvalidNode().WithDetail("reason", "default_handle is required")
	}
	return nil
}

func (c *ConditionConfig) GetType() NodeType { return NodeCondition }

// ============================================================================
// Variable Config
// ============================================================================

// AssignmentSource origen del valor de una asignación
type AssignmentSource string

const (
	AssignStatic       AssignmentSource = "static"
	AssignExpression   AssignmentSource = "expression"
	AssignFromVariable AssignmentSource = "from_variable"
)

type VariableAssignment struct {
	Name         string           `json:"name"`
	Source       AssignmentSource `json:"source"`
	Value        string           `json:"value,omitempty"`
	Expression   string           `json:"expression,omitempty"`
	FromVariable string           `json:"from_variable,omitempty"`
}

type SetVariableConfig struct {
	Assignments []VariableAssignment `json:"assignments"`
}

func (c *SetVariableConfig) Validate() error {
	if len(c.Assignments) == 0 {
		return ErrInvalidNode().WithDetail("reason", "assignments cannot be empty")
	}
	for _, a := range c.Assignments {
		if a.Name == "" {
			return ErrInvalidNode().WithDetail("reason", "assignment name is required")
		}
		switch a.Source {
		case AssignStatic:
		case AssignExpression:
			if a.Expression == "" {
				return ErrInvalidNode().WithDetail("reason", "expression is required")
			}
		case AssignFromVariable:
			if a.FromVariable == "" {
				return ErrInvalidNode().WithDetail("reason", "from_variable is required")
			}
		default:
			return ErrInvalidNode().WithDetail("reason", "unknown assignment source: "+string(a.Source))
		}
	}
	return nil
}

func (c *SetVariableConfig) GetType() NodeType { return NodeSetVariable }

// ============================================================================
// Loop Config
// ============================================================================

// LoopMode modo de iteración
type LoopMode string

const (
	LoopCount   LoopMode = "count"
	LoopWhile   LoopMode = "while"
	LoopForeach LoopMode = "foreach"
)

// LoopConfig configura count/while/foreach. MaxIterations es siempre el
// tope duro, incluso cuando la condición del while sigue siendo verdadera.
type LoopConfig struct {
	Mode          LoopMode       `json:"mode"`
	MaxIterations int            `json:"max_iterations"`
	Condition     *ConditionRule `json:"condition,omitempty"`
	Collection    string         `json:"collection,omitempty"`
	ItemVariable  string         `json:"item_variable,omitempty"`
	IndexVariable string         `json:"index_variable,omitempty"`
}

func (c *LoopConfig) Validate() error {
	switch c.Mode {
	case LoopCount:
	case LoopWhile:
		if c.Condition == nil {
			return ErrInvalidNode().WithDetail("reason", "while loop requires a condition")
		}
	case LoopForeach:
		if c.Collection == "" || c.ItemVariable == "" {
			return ErrInvalidNode().WithDetail("reason", "foreach loop requires collection and item_variable")
		}
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown loop mode: "+string(c.Mode))
	}
	if c.MaxIterations <= 0 || c.MaxIterations > 10000 {
		return ErrInvalidNode().WithDetail("reason", "max_iterations must be between 1 and 10000")
	}
	return nil
}

func (c *LoopConfig) GetType() NodeType { return NodeLoop }

// ============================================================================
// API Call Config
// ============================================================================

type APICallConfig struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutMs       *int              `json:"timeout_ms,omitempty"`
	ResponseMapping map[string]string `json:"response_mapping,omitempty"`
}

func (c *APICallConfig) Validate() error {
	if c.URL == "" {
		return ErrInvalidNode().WithDetail("reason", "url is required")
	}
	switch c.GetMethod() {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD":
	default:
		return ErrInvalidNode().WithDetail("reason", "invalid HTTP method: "+c.Method)
	}
	if c.TimeoutMs != nil && *c.TimeoutMs <= 0 {
		return ErrInvalidNode().WithDetail("reason", "timeout_ms must be positive")
	}
	return nil
}

func (c *APICallConfig) GetType() NodeType { return NodeAPICall }

func (c *APICallConfig) GetMethod() string {
	if c.Method == "" {
		return "GET"
	}
	return c.Method
}

// GetTimeoutMs retorna el timeout con default 10s
func (c *APICallConfig) GetTimeoutMs() int {
	if c.TimeoutMs != nil && *c.TimeoutMs > 0 {
		return *c.TimeoutMs
	}
	return 10000
}

// ============================================================================
// Delay Config
// ============================================================================

type DelayConfig struct {
	DelaySeconds int `json:"delay_seconds"`
}

func (c *DelayConfig) Validate() error {
	if c.DelaySeconds <= 0 {
		return ErrInvalidNode().WithDetail("reason", "delay_seconds must be positive")
	}
	return nil
}

func (c *DelayConfig) GetType() NodeType { return NodeDelay }

// ============================================================================
// Customer Data Config
// ============================================================================

// CustomerDataConfig config compartida por los getters de datos del cliente
type CustomerDataConfig struct {
	VariableName string `json:"variable_name"`

	nodeType NodeType
}

func (c *CustomerDataConfig) Validate() error {
	if c.VariableName == "" {
		return ErrInvalidNode().WithDetail("reason", "variable_name is required")
	}
	return nil
}

func (c *CustomerDataConfig) GetType() NodeType { return c.nodeType }

// ============================================================================
// Utility Configs
// ============================================================================

type FormatPhoneConfig struct {
	Variable           string `json:"variable"`
	OutputVariable     string `json:"output_variable"`
	DefaultCountryCode string `json:"default_country_code,omitempty"`
}

func (c *FormatPhoneConfig) Validate() error {
	if c.Variable == "" || c.OutputVariable == "" {
		return ErrInvalidNode().WithDetail("reason", "variable and output_variable are required")
	}
	return nil
}

func (c *FormatPhoneConfig) GetType() NodeType { return NodeFormatPhoneNumber }

type DateTimeConfig struct {
	Operation      string `json:"operation"` // now, format, add
	Format         string `json:"format,omitempty"`
	Variable       string `json:"variable,omitempty"`
	AddSeconds     int    `json:"add_seconds,omitempty"`
	OutputVariable string `json:"output_variable"`
}

func (c *DateTimeConfig) Validate() error {
	if c.OutputVariable == "" {
		return ErrInvalidNode().WithDetail("reason", "output_variable is required")
	}
	switch c.Operation {
	case "now", "format", "add", "":
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown dateTime operation: "+c.Operation)
	}
	return nil
}

func (c *DateTimeConfig) GetType() NodeType { return NodeDateTime }

type MathConfig struct {
	Operation      string `json:"operation"` // add, subtract, multiply, divide, modulo, round
	Left           string `json:"left"`
	Right          string `json:"right,omitempty"`
	OutputVariable string `json:"output_variable"`
}

func (c *MathConfig) Validate() error {
	if c.OutputVariable == "" {
		return ErrInvalidNode().WithDetail("reason", "output_variable is required")
	}
	switch c.Operation {
	case "add", "subtract", "multiply", "divide", "modulo", "round":
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown math operation: "+c.Operation)
	}
	return nil
}

func (c *MathConfig) GetType() NodeType { return NodeMathOperation }

type TextConfig struct {
	Operation      string `json:"operation"` // uppercase, lowercase, trim, replace, split, concat, substring
	Input          string `json:"input"`
	Search         string `json:"search,omitempty"`
	Replace        string `json:"replace,omitempty"`
	Separator      string `json:"separator,omitempty"`
	Second         string `json:"second,omitempty"`
	Start          int    `json:"start,omitempty"`
	End            int    `json:"end,omitempty"`
	OutputVariable string `json:"output_variable"`
}

func (c *TextConfig) Validate() error {
	if c.OutputVariable == "" {
		return ErrInvalidNode().WithDetail("reason", "output_variable is required")
	}
	switch c.Operation {
	case "uppercase", "lowercase", "trim", "replace", "split", "concat", "substring":
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown text operation: "+c.Operation)
	}
	return nil
}

func (c *TextConfig) GetType() NodeType { return NodeTextOperation }

type RandomChoiceConfig struct {
	Choices        []string `json:"choices"`
	OutputVariable string   `json:"output_variable"`
}

func (c *RandomChoiceConfig) Validate() error {
	if len(c.Choices) == 0 {
		return ErrInvalidNode().WithDetail("reason", "choices cannot be empty")
	}
	if c.OutputVariable == "" {
		return ErrInvalidNode().WithDetail("reason", "output_variable is required")
	}
	return nil
}

func (c *RandomChoiceConfig) GetType() NodeType { return NodeRandomChoice }

type MarkAsReadConfig struct{}

func (c *MarkAsReadConfig) Validate() error { return nil }

func (c *MarkAsReadConfig) GetType() NodeType { return NodeMarkAsRead }

// ============================================================================
// End Config
// ============================================================================

type EndConfig struct {
	EndType      string `json:"end_type,omitempty"` // success (default) | error
	ErrorMessage string `json:"error_message,omitempty"`
}

func (c *EndConfig) Validate() error {
	switch c.EndType {
	case "", "success", "error":
		return nil
	default:
		return ErrInvalidNode().WithDetail("reason", "unknown end_type: "+c.EndType)
	}
}

func (c *EndConfig) GetType() NodeType { return NodeEnd }

// IsError indica si el nodo termina la ejecución en estado failed
func (c *EndConfig) IsError() bool { return c.EndType == "error" }
