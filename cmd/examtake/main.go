package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/gateway"
	"github.com/rpsoft/examflow/internal/logger"
	"github.com/rpsoft/examflow/internal/model"
	"github.com/rpsoft/examflow/internal/session"
	"github.com/rpsoft/examflow/internal/snapshot"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Uso: examtake <exam-id>")
		os.Exit(1)
	}
	examID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "El identificador del examen no es válido:", os.Args[1])
		os.Exit(1)
	}

	token := cfg.GatewayToken
	if token == "" {
		token, err = promptToken()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read token")
		}
	}
	subject := tokenSubject(token, log)

	store, closeStore, err := buildStore(cfg, subject, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}
	defer closeStore()

	gw := gateway.NewClient(cfg.GatewayBaseURL, token, cfg.GatewayTimeout, log)
	ctrl := session.NewController(examID, gw, store, nil, cfg.AutosaveInterval, log)
	defer ctrl.Close()

	go renderEvents(ctrl)

	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		var blocked *session.BlockedError
		if errors.As(err, &blocked) {
			fmt.Println()
			fmt.Println(blocked.Message)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Session start failed")
	}

	runShell(ctx, ctrl)
}

// promptToken reads the bearer token without echoing it, the same way
// a password prompt would.
func promptToken() (string, error) {
	fmt.Print("Token de acceso: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("el token no puede estar vacío")
	}
	return token, nil
}

// tokenSubject extracts the subject claim without verifying the
// signature. Verification belongs to the gateway; here the claim only
// scopes the Redis snapshot key and warns about expiry upfront.
func tokenSubject(token string, log zerolog.Logger) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "anonymous"
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		log.Warn().Time("expired_at", claims.ExpiresAt.Time).Msg("Token looks expired, the gateway will likely reject it")
	}
	if claims.Subject == "" {
		return "anonymous"
	}
	return claims.Subject
}

// buildStore picks the snapshot backend from config.
func buildStore(cfg *config.Config, userID string, log zerolog.Logger) (snapshot.Store, func(), error) {
	if cfg.SnapshotBackend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rs, err := snapshot.NewRedisStore(ctx, cfg.RedisURL, userID, log)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	}
	fs, err := snapshot.NewFileStore(cfg.SnapshotDir, log)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

// renderEvents drains controller notifications. Ticks print only at
// minute boundaries and over the final ten seconds to keep the shell
// usable.
func renderEvents(ctrl *session.Controller) {
	for ev := range ctrl.Events() {
		switch ev.Kind {
		case session.EventTick:
			secs := int(ev.Remaining.Round(time.Second).Seconds())
			if secs <= 10 || secs%60 == 0 {
				fmt.Printf("\n[%s restantes]\n> ", formatRemaining(ev.Remaining))
			}
		case session.EventStarted:
			fmt.Println("\nNuevo intento iniciado.")
		case session.EventResumed:
			if ev.Source == session.ResumeLocal {
				fmt.Println("\nIntento recuperado desde el equipo local.")
			} else {
				fmt.Println("\nIntento en curso recuperado del servidor.")
			}
		case session.EventAutoSubmit:
			fmt.Println("\nSe acabó el tiempo. Enviando respuestas automáticamente...")
		case session.EventGraded:
			printResult(ev.Result)
		}
	}
}

// runShell is the interactive loop while an attempt is active.
func runShell(ctx context.Context, ctrl *session.Controller) {
	reader := bufio.NewReader(os.Stdin)
	printExamHeader(ctrl)
	printQuestions(ctrl)
	printHelp()

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "l", "list":
			printQuestions(ctrl)
		case "a", "answer":
			if len(fields) < 2 {
				fmt.Println("Uso: answer <número de pregunta>")
				continue
			}
			answerQuestion(reader, ctrl, fields[1])
		case "t", "time":
			if remaining, ok := ctrl.Remaining(); ok {
				fmt.Printf("Tiempo restante: %s\n", formatRemaining(remaining))
			} else {
				fmt.Println("Este examen no tiene límite de tiempo.")
			}
		case "save":
			switch err := ctrl.SaveAll(ctx); {
			case errors.Is(err, session.ErrNothingToSave):
				fmt.Println("Todavía no hay respuestas que guardar.")
			case err != nil:
				fmt.Println("No se pudieron guardar las respuestas:", err)
			default:
				fmt.Println("Respuestas guardadas.")
			}
		case "submit":
			if !confirm(reader, "¿Enviar el examen para calificación? (s/n): ") {
				continue
			}
			if err := ctrl.Submit(ctx); err != nil {
				fmt.Println("No se pudo enviar el examen:", err)
				continue
			}
			if !offerRetake(ctx, reader, ctrl) {
				return
			}
		case "q", "quit", "exit":
			fmt.Println("Tu intento sigue activo; puedes retomarlo más tarde.")
			return
		default:
			printHelp()
		}

		if ctrl.State() == session.StateGraded {
			if !offerRetake(ctx, reader, ctrl) {
				return
			}
		}
	}
}

// offerRetake asks for another attempt after grading, when allowed.
// Returns false when the shell should exit.
func offerRetake(ctx context.Context, reader *bufio.Reader, ctrl *session.Controller) bool {
	exam := ctrl.Exam()
	if exam == nil {
		return false
	}
	remaining, ok := exam.AttemptsRemaining()
	if !ok {
		fmt.Println("No quedan más intentos para este examen.")
		return false
	}
	if exam.MaxAttempts > 0 {
		fmt.Printf("Te quedan %d intento(s).\n", remaining)
	}
	if !confirm(reader, "¿Iniciar un nuevo intento? (s/n): ") {
		return false
	}
	if err := ctrl.StartNewAttempt(ctx); err != nil {
		var blocked *session.BlockedError
		if errors.As(err, &blocked) {
			fmt.Println(blocked.Message)
		} else {
			fmt.Println("No se pudo iniciar un nuevo intento:", err)
		}
		return false
	}
	printQuestions(ctrl)
	return true
}

func answerQuestion(reader *bufio.Reader, ctrl *session.Controller, arg string) {
	exam := ctrl.Exam()
	if exam == nil {
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(exam.Questions) {
		fmt.Printf("Elige una pregunta entre 1 y %d.\n", len(exam.Questions))
		return
	}
	q := sortedQuestions(exam)[n-1]

	fmt.Printf("\n%d. %s\n", n, q.Text)
	switch q.QuestionType {
	case model.QuestionTypeMultipleChoice:
		options := sortedOptions(q)
		for i, opt := range options {
			fmt.Printf("   %d) %s\n", i+1, opt.Text)
		}
		fmt.Print("Opción (número, vacío para borrar): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)
		if choice == "" {
			_ = ctrl.SetAnswer(q.ID, nil, "")
			return
		}
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(options) {
			fmt.Println("Opción no válida.")
			return
		}
		setOption(ctrl, q.ID, options[idx-1].ID)
	case model.QuestionTypeTrueFalse:
		fmt.Print("¿Verdadero o falso? (v/f): ")
		choice, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "v", "verdadero", "true":
			setOption(ctrl, q.ID, model.TrueFalseTrue)
		case "f", "falso", "false":
			setOption(ctrl, q.ID, model.TrueFalseFalse)
		default:
			fmt.Println("Responde v o f.")
		}
	default:
		fmt.Print("Respuesta: ")
		text, _ := reader.ReadString('\n')
		if err := ctrl.SetAnswer(q.ID, nil, strings.TrimSpace(text)); err != nil {
			fmt.Println("No se pudo registrar la respuesta:", err)
		}
	}
}

func setOption(ctrl *session.Controller, questionID uuid.UUID, optionID string) {
	if err := ctrl.SetAnswer(questionID, &optionID, ""); err != nil {
		fmt.Println("No se pudo registrar la respuesta:", err)
	}
}

func printExamHeader(ctrl *session.Controller) {
	exam := ctrl.Exam()
	if exam == nil {
		return
	}
	fmt.Println()
	fmt.Println("═══", exam.Title, "═══")
	if exam.Description != "" {
		fmt.Println(exam.Description)
	}
	if remaining, ok := ctrl.Remaining(); ok {
		fmt.Printf("Tiempo restante: %s\n", formatRemaining(remaining))
	}
}

func printQuestions(ctrl *session.Controller) {
	exam := ctrl.Exam()
	if exam == nil {
		return
	}
	answers := ctrl.Answers()

	fmt.Println()
	for i, q := range sortedQuestions(exam) {
		mark := " "
		if a, ok := answers[q.ID]; ok && a.Answered() {
			mark = "✓"
		}
		fmt.Printf("[%s] %d. %s\n", mark, i+1, q.Text)
	}
}

func printResult(result *model.Result) {
	if result == nil {
		return
	}
	fmt.Println()
	fmt.Println("─── Resultado ───")
	fmt.Printf("Nota: %.2f / 20 (%.1f%%)\n", result.Score, result.Percentage)
	if result.Passed {
		fmt.Println("¡Aprobado!")
	} else {
		fmt.Println("No aprobado.")
	}
}

func printHelp() {
	fmt.Println()
	fmt.Println("Comandos: list, answer <n>, time, save, submit, quit")
}

func confirm(reader *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "s" || answer == "si" || answer == "sí" || answer == "y" || answer == "yes"
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func sortedQuestions(exam *model.Exam) []model.Question {
	qs := append([]model.Question(nil), exam.Questions...)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	return qs
}

func sortedOptions(q model.Question) []model.Option {
	opts := append([]model.Option(nil), q.Options...)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Order < opts[j].Order })
	return opts
}
