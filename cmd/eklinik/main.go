// Command eklinik is a terminal client for the eKlinik patient API.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
	"github.com/serhatkrkmz54/eklinik-v2/internal/booking"
	"github.com/serhatkrkmz54/eklinik-v2/internal/catalog"
	"github.com/serhatkrkmz54/eklinik-v2/internal/config"
	"github.com/serhatkrkmz54/eklinik-v2/internal/history"
	"github.com/serhatkrkmz54/eklinik-v2/internal/observability/metrics"
	"github.com/serhatkrkmz54/eklinik-v2/internal/push"
	"github.com/serhatkrkmz54/eklinik-v2/internal/schedule"
	"github.com/serhatkrkmz54/eklinik-v2/internal/session"
	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

const usage = `usage: eklinik <command> [args]

commands:
  login <nationalId> <password>   authenticate and store the credential
  register                        create an account (prompts for fields)
  logout                          erase the stored credential
  me                              show the authenticated profile
  clinics                         list clinics
  doctors <clinicId>              list a clinic's doctors
  slots <doctorId> [date]         show the bookable calendar / a day's slots
  book <doctorId> <slotId>        book a slot (asks for confirmation)
  cancel <appointmentId>          cancel an upcoming appointment
  history                         show upcoming and past appointments
  details <appointmentId>         show one appointment with medical record
  watch [query]                   follow live clinic catalog updates
`

type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	client   *api.Client
	sessions *session.Manager
}

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "loaded .env")
	}

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	sessions := session.NewManager(session.NewFileStore(cfg.TokenPath), logger)

	clientOpts := []api.Option{
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithTokenSource(sessions),
		api.WithAuthErrorHook(sessions.Invalidate),
	}
	if cfg.MetricsEnabled {
		clientOpts = append(clientOpts, api.WithMetrics(metrics.NewAPIMetrics(nil)))
	}
	client := api.NewClient(cfg.APIBaseURL, logger, clientOpts...)

	a := &app{cfg: cfg, logger: logger, client: client, sessions: sessions}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions.Restore(ctx)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, apiErr.UserMessage())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx)
	case "logout":
		return a.sessions.Logout(ctx)
	case "me":
		return a.me(ctx)
	case "clinics":
		return a.clinics(ctx)
	case "doctors":
		return a.doctors(ctx, args)
	case "slots":
		return a.slots(ctx, args)
	case "book":
		return a.book(ctx, args)
	case "cancel":
		return a.cancel(ctx, args)
	case "history":
		return a.history(ctx)
	case "details":
		return a.details(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: eklinik login <nationalId> <password>")
	}
	token, err := a.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if err := a.sessions.Login(ctx, token); err != nil {
		return err
	}
	id, _ := a.sessions.Identity()
	fmt.Printf("giriş başarılı (%s)\n", id.SubjectID)
	return nil
}

func (a *app) register(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Printf("%s: ", label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	req := api.RegisterRequest{
		NationalID:  prompt("T.C. Kimlik No"),
		FirstName:   prompt("Ad"),
		LastName:    prompt("Soyad"),
		Password:    prompt("Şifre"),
		Email:       prompt("E-posta"),
		PhoneNumber: prompt("Telefon"),
	}

	token, err := a.client.Register(ctx, req)
	if err != nil {
		return err
	}
	if token != "" {
		if err := a.sessions.Login(ctx, token); err != nil {
			return err
		}
	}
	fmt.Println("kayıt başarılı")
	return nil
}

func (a *app) me(ctx context.Context) error {
	profile, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s <%s> %s\n", profile.FirstName, profile.LastName, profile.Email, profile.PhoneNumber)
	return nil
}

func (a *app) clinics(ctx context.Context) error {
	clinics, err := a.client.Clinics(ctx)
	if err != nil {
		return err
	}
	for _, clinic := range clinics {
		fmt.Printf("%4d  %s\n", clinic.ID, clinic.Name)
	}
	return nil
}

func (a *app) doctors(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: eklinik doctors <clinicId>")
	}
	clinicID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid clinic id %q", args[0])
	}
	doctors, err := a.client.DoctorsByClinic(ctx, clinicID)
	if err != nil {
		return err
	}
	for _, d := range doctors {
		fmt.Printf("%4d  %-30s %s\n", d.DoctorID, d.FullName(), d.Clinic.Name)
	}
	return nil
}

func (a *app) fetchSlots(ctx context.Context, doctorID int64) (api.SlotMap, error) {
	start, end := schedule.FetchRange(time.Now(), a.cfg.SlotRangeDays)
	return a.client.SlotsInRange(ctx, doctorID, start, end)
}

func (a *app) scheduleOptions() schedule.Options {
	return schedule.Options{
		LookaheadDays: a.cfg.LookaheadDays,
		CutoffHour:    a.cfg.CutoffHour,
	}
}

func (a *app) slots(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: eklinik slots <doctorId> [date]")
	}
	doctorID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid doctor id %q", args[0])
	}

	slotMap, err := a.fetchSlots(ctx, doctorID)
	if err != nil {
		return err
	}

	now := time.Now()
	calendar := schedule.Calendar(slotMap, now, a.scheduleOptions())
	if len(calendar) == 0 {
		fmt.Println("uygun tarih bulunmuyor")
		return nil
	}

	if len(args) == 1 {
		for _, date := range calendar {
			fmt.Println(date)
		}
		return nil
	}

	date, ok := schedule.ValidateSelection(calendar, args[1])
	if !ok {
		return fmt.Errorf("date %s is not in the bookable calendar", args[1])
	}
	for _, s := range schedule.DaySlots(slotMap, date, now) {
		marker := " "
		switch {
		case s.IsBooked:
			marker = "×"
		case s.IsPast:
			marker = "·"
		}
		fmt.Printf("%s %5d  %s\n", marker, s.ID, s.StartTime.Format("15:04"))
	}
	return nil
}

func (a *app) book(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: eklinik book <doctorId> <slotId>")
	}
	doctorID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid doctor id %q", args[0])
	}
	slotID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid slot id %q", args[1])
	}

	doctor, err := a.client.Doctor(ctx, doctorID)
	if err != nil {
		return err
	}
	slotMap, err := a.fetchSlots(ctx, doctorID)
	if err != nil {
		return err
	}

	now := time.Now()
	var selected *schedule.AnnotatedSlot
	for _, date := range schedule.Calendar(slotMap, now, a.scheduleOptions()) {
		for _, s := range schedule.DaySlots(slotMap, date, now) {
			if s.ID == slotID {
				selected = &s
				break
			}
		}
	}
	if selected == nil {
		return fmt.Errorf("slot %d is not in the bookable calendar", slotID)
	}

	coordinator := booking.NewCoordinator(a.client, func(ctx context.Context) error {
		_, err := a.fetchSlots(ctx, doctorID)
		return err
	}, nil, a.logger)

	if err := coordinator.SelectSlot(*selected, *doctor); err != nil {
		return err
	}
	confirmation, err := coordinator.RequestConfirmation()
	if err != nil {
		return err
	}

	fmt.Printf("randevu: %s — %s — %s\n",
		confirmation.DoctorFullName,
		confirmation.ClinicName,
		confirmation.StartTime.Format("02.01.2006 15:04"),
	)
	if !confirm("onaylıyor musunuz") {
		coordinator.Abandon()
		fmt.Println("vazgeçildi")
		return nil
	}

	outcome, err := coordinator.ConfirmBooking(ctx)
	if outcome.Message != "" {
		fmt.Println(outcome.Message)
	} else if outcome.Success {
		fmt.Println("randevunuz oluşturuldu")
	}
	return err
}

func (a *app) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: eklinik cancel <appointmentId>")
	}
	appointmentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid appointment id %q", args[0])
	}

	appointments, err := a.client.MyHistory(ctx)
	if err != nil {
		return err
	}
	var target *api.Appointment
	for i := range appointments {
		if appointments[i].AppointmentID == appointmentID {
			target = &appointments[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("appointment %d not found in history", appointmentID)
	}
	if !history.IsCancellable(*target, time.Now()) {
		return fmt.Errorf("appointment %d is not cancellable", appointmentID)
	}

	coordinator := booking.NewCoordinator(a.client, nil, func(ctx context.Context) error {
		_, err := a.client.MyHistory(ctx)
		return err
	}, a.logger)

	confirmation, err := coordinator.RequestCancel(*target)
	if err != nil {
		return err
	}
	fmt.Printf("iptal: %s — %s — %s\n",
		confirmation.DoctorFullName,
		confirmation.ClinicName,
		confirmation.StartTime.Format("02.01.2006 15:04"),
	)
	if !confirm("randevu iptal edilsin mi") {
		coordinator.Abandon()
		fmt.Println("vazgeçildi")
		return nil
	}

	outcome, err := coordinator.ConfirmCancel(ctx)
	if outcome.Success {
		fmt.Println("randevunuz iptal edildi")
	} else if outcome.Message != "" {
		fmt.Println(outcome.Message)
	}
	return err
}

func (a *app) history(ctx context.Context) error {
	appointments, err := a.client.MyHistory(ctx)
	if err != nil {
		return err
	}

	upcoming, past := history.Partition(appointments, time.Now())

	fmt.Println("— gelecek —")
	printAppointments(upcoming)
	fmt.Println("— geçmiş —")
	printAppointments(past)
	return nil
}

func printAppointments(list []history.Classified) {
	for _, a := range list {
		cancellable := " "
		if a.Cancellable {
			cancellable = "c"
		}
		fmt.Printf("%s %5d  %-10s %s  %s (%s)\n",
			cancellable,
			a.AppointmentID,
			a.Badge,
			a.AppointmentTime.Format("02.01.2006 15:04"),
			a.DoctorFullName,
			a.ClinicName,
		)
	}
}

func (a *app) details(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: eklinik details <appointmentId>")
	}
	appointmentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid appointment id %q", args[0])
	}

	details, err := a.client.AppointmentDetails(ctx, appointmentID)
	if err != nil {
		return err
	}
	fmt.Printf("%s — %s — %s [%s]\n",
		details.DoctorFullName,
		details.ClinicName,
		details.AppointmentTime.Format("02.01.2006 15:04"),
		details.Status,
	)
	if details.MedicalRecord != nil {
		fmt.Printf("tanı: %s\n", details.MedicalRecord.Diagnosis)
		if details.MedicalRecord.Notes != "" {
			fmt.Printf("not:  %s\n", details.MedicalRecord.Notes)
		}
	}
	return nil
}

func (a *app) watch(ctx context.Context, args []string) error {
	subscriber, err := a.newSubscriber()
	if err != nil {
		return err
	}

	channel := catalog.NewSyncChannel(subscriber, a.cfg.ClinicsTopic, a.logger)
	if len(args) > 0 {
		channel.SetQuery(args[0])
	}

	clinics, err := a.client.Clinics(ctx)
	if err != nil {
		return err
	}
	channel.SetBase(clinics)

	channel.OnMerge(func(clinic api.ClinicSummary) {
		fmt.Printf("yeni klinik: %d %s\n", clinic.ID, clinic.Name)
		for _, c := range channel.Displayed() {
			fmt.Printf("  %4d  %s\n", c.ID, c.Name)
		}
	})

	if err := channel.Activate(ctx); err != nil {
		return err
	}
	defer channel.Deactivate()

	for _, c := range channel.Displayed() {
		fmt.Printf("  %4d  %s\n", c.ID, c.Name)
	}
	fmt.Println("güncellemeler bekleniyor (çıkış: ctrl-c)")

	<-ctx.Done()
	return nil
}

func (a *app) newSubscriber() (push.Subscriber, error) {
	switch a.cfg.PushTransport {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
		})
		return push.NewRedisSubscriber(client, a.logger), nil
	case "websocket":
		return push.NewWebsocketSubscriber(a.cfg.PushWSEndpoint, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown push transport %q", a.cfg.PushTransport)
	}
}

func confirm(question string) bool {
	fmt.Printf("%s? [e/H] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "e" || answer == "evet"
}
