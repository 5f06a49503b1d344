package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownCommand indicates a command name outside the supported table.
	ErrUnknownCommand = errors.New("unknown external command")
	// ErrInvalidCommand indicates a malformed line or bad argument.
	ErrInvalidCommand = errors.New("invalid external command")
)

// Class separates commands the ingestion worker may execute itself from
// commands that must run on the engine goroutine.
type Class int

const (
	// ClassCheckResult marks passive check results, enqueued to the check-result queue.
	ClassCheckResult Class = iota
	// ClassEngine marks commands executed by the engine.
	ClassEngine
)

// Supported command names.
const (
	ProcessHostCheckResult        = "PROCESS_HOST_CHECK_RESULT"
	ProcessServiceCheckResult     = "PROCESS_SERVICE_CHECK_RESULT"
	AcknowledgeHostProblem        = "ACKNOWLEDGE_HOST_PROBLEM"
	AcknowledgeServiceProblem     = "ACKNOWLEDGE_SVC_PROBLEM"
	RemoveHostAcknowledgement     = "REMOVE_HOST_ACKNOWLEDGEMENT"
	RemoveServiceAcknowledgement  = "REMOVE_SVC_ACKNOWLEDGEMENT"
	SendCustomHostNotification    = "SEND_CUSTOM_HOST_NOTIFICATION"
	SendCustomServiceNotification = "SEND_CUSTOM_SVC_NOTIFICATION"
	EnableNotifications           = "ENABLE_NOTIFICATIONS"
	DisableNotifications          = "DISABLE_NOTIFICATIONS"
	EnableHostNotifications       = "ENABLE_HOST_NOTIFICATIONS"
	DisableHostNotifications      = "DISABLE_HOST_NOTIFICATIONS"
	EnableServiceNotifications    = "ENABLE_SVC_NOTIFICATIONS"
	DisableServiceNotifications   = "DISABLE_SVC_NOTIFICATIONS"
	ChangeHostNotificationNumber  = "CHANGE_HOST_NOTIFICATION_NUMBER"
	ChangeServiceNotificationNum  = "CHANGE_SVC_NOTIFICATION_NUMBER"
	ScheduleHostDowntime          = "SCHEDULE_HOST_DOWNTIME"
	ScheduleServiceDowntime       = "SCHEDULE_SVC_DOWNTIME"
	DeleteHostDowntime            = "DEL_HOST_DOWNTIME"
	DeleteServiceDowntime         = "DEL_SVC_DOWNTIME"
	EnableHostFlapDetection       = "ENABLE_HOST_FLAP_DETECTION"
	DisableHostFlapDetection      = "DISABLE_HOST_FLAP_DETECTION"
	EnableServiceFlapDetection    = "ENABLE_SVC_FLAP_DETECTION"
	DisableServiceFlapDetection   = "DISABLE_SVC_FLAP_DETECTION"
)

// descriptor declares argument layout for one command.
// target is the number of leading object arguments (0 none, 1 host, 2 host+service);
// args is the total argument count, the last argument keeps any further semicolons.
type descriptor struct {
	class  Class
	target int
	args   int
}

var commandTable = map[string]descriptor{
	ProcessHostCheckResult:        {class: ClassCheckResult, target: 1, args: 3},
	ProcessServiceCheckResult:     {class: ClassCheckResult, target: 2, args: 4},
	AcknowledgeHostProblem:        {class: ClassEngine, target: 1, args: 6},
	AcknowledgeServiceProblem:     {class: ClassEngine, target: 2, args: 7},
	RemoveHostAcknowledgement:     {class: ClassEngine, target: 1, args: 1},
	RemoveServiceAcknowledgement:  {class: ClassEngine, target: 2, args: 2},
	SendCustomHostNotification:    {class: ClassEngine, target: 1, args: 4},
	SendCustomServiceNotification: {class: ClassEngine, target: 2, args: 5},
	EnableNotifications:           {class: ClassEngine},
	DisableNotifications:          {class: ClassEngine},
	EnableHostNotifications:       {class: ClassEngine, target: 1, args: 1},
	DisableHostNotifications:      {class: ClassEngine, target: 1, args: 1},
	EnableServiceNotifications:    {class: ClassEngine, target: 2, args: 2},
	DisableServiceNotifications:   {class: ClassEngine, target: 2, args: 2},
	ChangeHostNotificationNumber:  {class: ClassEngine, target: 1, args: 2},
	ChangeServiceNotificationNum:  {class: ClassEngine, target: 2, args: 3},
	ScheduleHostDowntime:          {class: ClassEngine, target: 1, args: 8},
	ScheduleServiceDowntime:       {class: ClassEngine, target: 2, args: 9},
	DeleteHostDowntime:            {class: ClassEngine, args: 1},
	DeleteServiceDowntime:         {class: ClassEngine, args: 1},
	EnableHostFlapDetection:       {class: ClassEngine, target: 1, args: 1},
	DisableHostFlapDetection:      {class: ClassEngine, target: 1, args: 1},
	EnableServiceFlapDetection:    {class: ClassEngine, target: 2, args: 2},
	DisableServiceFlapDetection:   {class: ClassEngine, target: 2, args: 2},
}

// Command is one parsed external command.
// Params: correlation id, name, arguments, and submission/receive times.
// Returns: queue unit consumed by the engine.
type Command struct {
	ID          string
	Name        string
	Args        []string
	SubmittedAt time.Time
	ReceivedAt  time.Time
}

// Parse decodes one "[<unix ts>] NAME;arg1;arg2" line.
// Params: raw line (timestamp prefix optional) and receive time.
// Returns: command with a fresh uuid, ErrUnknownCommand, or ErrInvalidCommand.
func Parse(line string, now time.Time) (Command, error) {
	line = strings.TrimSpace(line)
	cmd := Command{ID: uuid.NewString(), ReceivedAt: now, SubmittedAt: now}

	if strings.HasPrefix(line, "[") {
		closing := strings.IndexByte(line, ']')
		if closing < 0 {
			return Command{}, fmt.Errorf("%w: unterminated timestamp", ErrInvalidCommand)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(line[1:closing]), 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%w: timestamp %q", ErrInvalidCommand, line[1:closing])
		}
		cmd.SubmittedAt = time.Unix(ts, 0).UTC()
		line = strings.TrimSpace(line[closing+1:])
	}
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	name, rest, hasArgs := strings.Cut(line, ";")
	cmd.Name = strings.ToUpper(strings.TrimSpace(name))
	desc, ok := commandTable[cmd.Name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if desc.args == 0 {
		return cmd, nil
	}
	if !hasArgs {
		return Command{}, fmt.Errorf("%w: %s expects %d arguments, got 0", ErrInvalidCommand, cmd.Name, desc.args)
	}
	cmd.Args = strings.SplitN(rest, ";", desc.args)
	if len(cmd.Args) != desc.args {
		return Command{}, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidCommand, cmd.Name, desc.args, len(cmd.Args))
	}
	for i := 0; i < desc.target; i++ {
		if strings.TrimSpace(cmd.Args[i]) == "" {
			return Command{}, fmt.Errorf("%w: %s argument %d (object name) is empty", ErrInvalidCommand, cmd.Name, i+1)
		}
	}
	return cmd, nil
}

// Class returns execution class; unknown names count as engine commands.
func (c Command) Class() Class {
	return commandTable[c.Name].class
}

// Host returns target host name, or "" for global commands.
func (c Command) Host() string {
	if commandTable[c.Name].target < 1 {
		return ""
	}
	return strings.TrimSpace(c.Args[0])
}

// Service returns target service description, or "" for host and global commands.
func (c Command) Service() string {
	if commandTable[c.Name].target < 2 {
		return ""
	}
	return strings.TrimSpace(c.Args[1])
}

// Param returns the i-th argument after the target object arguments.
// Params: zero-based index.
// Returns: argument text (last argument keeps embedded semicolons), "" when absent.
func (c Command) Param(i int) string {
	idx := commandTable[c.Name].target + i
	if i < 0 || idx >= len(c.Args) {
		return ""
	}
	return c.Args[idx]
}

// IntParam parses the i-th parameter as integer.
// Params: zero-based index after target arguments.
// Returns: value or ErrInvalidCommand.
func (c Command) IntParam(i int) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(c.Param(i)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s parameter %d: %q is not an integer", ErrInvalidCommand, c.Name, i+1, c.Param(i))
	}
	return value, nil
}

// BoolParam parses the i-th parameter as a 0/1 (or any integer) flag.
func (c Command) BoolParam(i int) (bool, error) {
	value, err := c.IntParam(i)
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

// String renders command back to line format.
func (c Command) String() string {
	var builder strings.Builder
	builder.WriteByte('[')
	builder.WriteString(strconv.FormatInt(c.SubmittedAt.Unix(), 10))
	builder.WriteString("] ")
	builder.WriteString(c.Name)
	for _, arg := range c.Args {
		builder.WriteByte(';')
		builder.WriteString(arg)
	}
	return builder.String()
}

// CheckResult is a decoded passive check result.
type CheckResult struct {
	CommandID string
	Host      string
	Service   string
	Code      int
	Output    string
	At        time.Time
}

// CheckResult decodes PROCESS_*_CHECK_RESULT arguments.
// Params: none.
// Returns: check result or ErrInvalidCommand for other commands and bad codes.
func (c Command) CheckResult() (CheckResult, error) {
	if c.Class() != ClassCheckResult {
		return CheckResult{}, fmt.Errorf("%w: %s is not a check result", ErrInvalidCommand, c.Name)
	}
	code, err := c.IntParam(0)
	if err != nil {
		return CheckResult{}, err
	}
	maxCode := int64(3)
	if c.Name == ProcessHostCheckResult {
		maxCode = 2
	}
	if code < 0 || code > maxCode {
		return CheckResult{}, fmt.Errorf("%w: %s return code %d is out of range", ErrInvalidCommand, c.Name, code)
	}
	return CheckResult{
		CommandID: c.ID,
		Host:      c.Host(),
		Service:   c.Service(),
		Code:      int(code),
		Output:    c.Param(1),
		At:        c.SubmittedAt,
	}, nil
}
