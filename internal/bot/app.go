package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/couponmaster/couponbot/core/telegram"
	"github.com/couponmaster/couponbot/core/telegram/commands"
	tghelpers "github.com/couponmaster/couponbot/core/telegram/helpers"
	"github.com/couponmaster/couponbot/internal/conversation"
	"github.com/couponmaster/couponbot/internal/reminder"
)

const helpText = `I keep track of your coupons.

Connect this chat with the verification code from the site, then use the menu:
add coupons manually or by describing them in free text, check what's left on
each one, record usage and get reminders before anything expires.

Commands:
/start - show the menu
/coupons - list your active coupons
/disconnect - unlink this chat
/help - this message

Type "cancel" at any point to abandon what you're doing.`

// App binds the conversation engine and the notifier to Telegram handlers.
// It satisfies the router's FSM interface so in-progress conversations take
// precedence over command lookup.
type App struct {
	engine   *conversation.Engine
	notifier *reminder.Notifier
	settings reminder.SettingsStore
}

// NewApp wires the handlers.
func NewApp(engine *conversation.Engine, notifier *reminder.Notifier, settings reminder.SettingsStore) *App {
	return &App{engine: engine, notifier: notifier, settings: settings}
}

// InProgress reports whether the chat has a conversation underway.
func (a *App) InProgress(chatID int64) bool {
	return a.engine.InProgress(chatID)
}

// HandleText feeds an inbound message to the engine. Registered as the text
// fallback and as the FSM handler.
func (a *App) HandleText(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	var username string
	if s := c.Sender(); s != nil {
		username = s.Username
	}
	return a.engine.HandleMessage(ctx, c.Chat().ID, username, c.Text())
}

// Registry builds the command set. Admin commands are hidden from the
// Telegram command menu and rejected for everyone but the configured admin.
func (a *App) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Connect this chat and show the menu",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "What this bot does",
	})
	reg.RegisterCommand("/coupons", commands.Command{
		Handler:     a.handleCoupons,
		Description: "List your active coupons",
		Aliases:     []string{"list"},
	})
	reg.RegisterCommand("/disconnect", commands.Command{
		Handler:     a.handleDisconnect,
		Description: "Unlink this chat",
	})
	reg.RegisterCommand("/remindertime", commands.Command{
		Handler:     a.handleReminderTime,
		Description: "Set the daily reminder time (HH:MM)",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/summaryday", commands.Command{
		Handler:     a.handleSummaryDay,
		Description: "Set the monthly summary day (1-28)",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/dryrun", commands.Command{
		Handler:     a.handleDryRun,
		Description: "Run the reminder sweep without sending",
		AdminOnly:   true,
		Hidden:      true,
	})

	reg.SetTextFallback(a.HandleText)
	return reg
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.engine.Start(ctx, c.Chat().ID)
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, helpText)
}

func (a *App) handleCoupons(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.engine.Coupons(ctx, c.Chat().ID)
}

func (a *App) handleDisconnect(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return a.engine.Disconnect(ctx, c.Chat().ID)
}

// handleReminderTime reschedules the daily sweep. The running loop picks the
// change up immediately through the notifier's wake signal.
func (a *App) handleReminderTime(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	hour, minute, err := parseClock(c.Message().Payload)
	if err != nil {
		return tghelpers.SendText(c, "Usage: /remindertime HH:MM")
	}
	st, err := a.settings.Load(ctx)
	if err != nil {
		return tghelpers.SendText(c, "Could not load the current schedule, try again.")
	}
	if err := a.notifier.Reconfigure(ctx, hour, minute, st.MonthlyDay); err != nil {
		return tghelpers.SendText(c, "Could not save the new time: "+err.Error())
	}
	return tghelpers.SendText(c, fmt.Sprintf("Daily reminders will now go out at %02d:%02d.", hour, minute))
}

func (a *App) handleSummaryDay(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	day, err := strconv.Atoi(strings.TrimSpace(c.Message().Payload))
	if err != nil || day < 1 || day > 28 {
		return tghelpers.SendText(c, "Usage: /summaryday N (1-28)")
	}
	st, err := a.settings.Load(ctx)
	if err != nil {
		return tghelpers.SendText(c, "Could not load the current schedule, try again.")
	}
	if err := a.notifier.Reconfigure(ctx, st.Hour, st.Minute, day); err != nil {
		return tghelpers.SendText(c, "Could not save the new day: "+err.Error())
	}
	return tghelpers.SendText(c, fmt.Sprintf("Monthly summaries will now go out on day %d.", day))
}

// handleDryRun runs the sweep immediately without sending or flagging and
// reports what would have happened.
func (a *App) handleDryRun(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	report, err := a.notifier.RunDailySweep(ctx, true)
	if err != nil {
		return tghelpers.SendText(c, "Sweep failed: "+err.Error())
	}
	return tghelpers.SendText(c, report.String())
}

func parseClock(payload string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(payload), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bot: bad clock %q", payload)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bot: clock out of range %q", payload)
	}
	return hour, minute, nil
}
