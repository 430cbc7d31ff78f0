// Command filing-cli walks an applicant through a filing: details, documents,
// review, payment and submission.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"filingdesk/internal/workflow"
	"filingdesk/internal/workflow/apiclient"

	"github.com/AlecAivazis/survey/v2"
	"github.com/sirupsen/logrus"
)

type options struct {
	server    string
	token     string
	planKey   string
	resume    string
	devSecret string
	abandon   time.Duration
	verbose   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "filing API base URL")
	flag.StringVar(&opts.token, "token", os.Getenv("FILING_TOKEN"), "bearer token; skips the login prompt")
	flag.StringVar(&opts.planKey, "plan", "", "plan key (asked when empty)")
	flag.StringVar(&opts.resume, "resume", "", "resume an existing submission id")
	flag.StringVar(&opts.devSecret, "dev-secret", "", "sign checkouts locally with the dev provider key secret")
	flag.DurationVar(&opts.abandon, "abandon-after", 10*time.Minute, "give up waiting for checkout after this long")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()

	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		var werr *workflow.Error
		if errors.As(err, &werr) {
			fmt.Fprintln(os.Stderr, werr.UserMessage())
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	var clientOpts []apiclient.Option
	if opts.token != "" {
		clientOpts = append(clientOpts, apiclient.WithToken(opts.token))
	}
	client := apiclient.New(opts.server, clientOpts...)
	if client.Token() == "" {
		if err := login(ctx, client); err != nil {
			return err
		}
	}

	ident, err := client.Identity(ctx)
	if err != nil {
		return err
	}

	planKey := opts.planKey
	if opts.resume != "" && planKey == "" {
		rec, err := client.Get(ctx, opts.resume)
		if err != nil {
			return err
		}
		planKey = rec.PlanKey
	}
	if planKey == "" {
		if planKey, err = choosePlan(ctx, client); err != nil {
			return err
		}
	}

	o, err := workflow.New(workflow.Config{
		Store:        client,
		Storage:      client,
		Orders:       client,
		Identity:     ident,
		PlanKey:      planKey,
		AbandonAfter: opts.abandon,
		Logger:       logrus.WithField("cli", true),
	})
	if err != nil {
		return err
	}

	if opts.resume != "" {
		step, err := o.Resume(ctx, opts.resume)
		if err != nil {
			return err
		}
		fmt.Printf("Resuming %s at %s\n", opts.resume, step)
	}

	var surface workflow.CheckoutSurface = manualCheckout{}
	if opts.devSecret != "" {
		surface = apiclient.DevCheckout{KeySecret: opts.devSecret}
	}

	for {
		switch o.Step() {
		case workflow.StepDetails:
			err = detailsStep(ctx, o)
		case workflow.StepDocuments:
			err = documentsStep(ctx, o)
		case workflow.StepReview:
			err = reviewStep(o)
		case workflow.StepPayment:
			err = paymentStep(ctx, o, surface)
		case workflow.StepSuccess:
			fmt.Printf("\nSubmitted. Reference: %s\n", o.SubmissionID())
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func login(ctx context.Context, client *apiclient.Client) error {
	answers := struct {
		Login    string
		Password string
	}{}
	questions := []*survey.Question{
		{Name: "login", Prompt: &survey.Input{Message: "Login:"}, Validate: survey.Required},
		{Name: "password", Prompt: &survey.Password{Message: "Password:"}, Validate: survey.Required},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	_, err := client.Login(ctx, answers.Login, answers.Password)
	return err
}

func choosePlan(ctx context.Context, client *apiclient.Client) (string, error) {
	plans, err := client.Plans(ctx)
	if err != nil {
		return "", err
	}
	options := make([]string, 0, len(plans))
	keys := make(map[string]string, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s (%s)", p.Title, workflow.FormatAmount(p.Amount))
		options = append(options, label)
		keys[label] = p.Key
	}
	var choice string
	if err := survey.AskOne(&survey.Select{Message: "Choose a plan:", Options: options}, &choice); err != nil {
		return "", err
	}
	return keys[choice], nil
}

func detailsStep(ctx context.Context, o *workflow.Orchestrator) error {
	current := map[string]string{}
	if rec := o.Record(); rec != nil {
		current = rec.Form
	}
	fields := o.Prefill(current)

	for _, name := range o.Plan().RequiredFields() {
		var answer string
		prompt := &survey.Input{Message: label(name) + ":", Default: fields[name]}
		err := survey.AskOne(prompt, &answer, survey.WithValidator(func(ans interface{}) error {
			if reason := o.Validator().ValidateField(name, strings.TrimSpace(ans.(string))); reason != "" {
				return errors.New(reason)
			}
			return nil
		}))
		if err != nil {
			return err
		}
		fields[name] = strings.TrimSpace(answer)
	}

	if _, err := o.SaveDetails(ctx, fields); err != nil {
		return err
	}
	_, err := o.Advance(nil)
	return err
}

func documentsStep(ctx context.Context, o *workflow.Orchestrator) error {
	p := o.Plan()
	files := map[string]workflow.File{}
	for _, st := range o.Documents() {
		if st.State == workflow.KeyLinked {
			fmt.Printf("  %s: attached\n", label(st.Key))
			continue
		}
		if st.State == workflow.KeyUploaded {
			if _, err := o.RetryLink(ctx, st.Key); err != nil {
				fmt.Printf("  %s: %v\n", label(st.Key), err)
			}
			continue
		}

		msg := label(st.Key) + " (file path"
		if !p.IsRequiredDocument(st.Key) {
			msg += ", optional"
		}
		msg += "):"
		var path string
		if err := survey.AskOne(&survey.Input{Message: msg}, &path); err != nil {
			return err
		}
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("  cannot read %s: %v\n", path, err)
			continue
		}
		files[st.Key] = workflow.File{Name: filepath.Base(path), Data: data}
	}

	if len(files) > 0 {
		for key, err := range o.UploadDocuments(ctx, files) {
			var werr *workflow.Error
			if errors.As(err, &werr) {
				fmt.Printf("  %s\n", werr.UserMessage())
			} else {
				fmt.Printf("  %s: %v\n", label(key), err)
			}
		}
	}

	if _, err := o.Advance(nil); err != nil {
		if workflow.IsKind(err, workflow.KindValidation) {
			fmt.Println("Some required documents are still missing.")
			return nil
		}
		return err
	}
	return nil
}

func reviewStep(o *workflow.Orchestrator) error {
	summary, err := o.Review()
	if err != nil {
		if workflow.IsKind(err, workflow.KindValidation) {
			return o.Retreat(workflow.StepDocuments)
		}
		return err
	}

	fmt.Printf("\n%s\nSubmission %s\n", summary.Plan.Title, summary.SubmissionID)
	for _, name := range summary.Plan.RequiredFields() {
		fmt.Printf("  %-18s %s\n", label(name), summary.Form[name])
	}
	for _, st := range summary.Documents {
		if st.State == workflow.KeyLinked {
			fmt.Printf("  %-18s attached\n", label(st.Key))
		}
	}
	fmt.Printf("Amount payable: %s\n\n", workflow.FormatAmount(summary.Amount))

	confirmed := false
	if err := survey.AskOne(&survey.Confirm{Message: "Are these details correct?"}, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		return o.Retreat(workflow.StepDetails)
	}
	_, err = o.Advance(map[string]string{workflow.FieldConfirm: "true"})
	return err
}

func paymentStep(ctx context.Context, o *workflow.Orchestrator, surface workflow.CheckoutSurface) error {
	_, err := o.Pay(ctx, surface)
	for err != nil {
		var werr *workflow.Error
		if !errors.As(err, &werr) {
			return err
		}
		fmt.Println(werr.UserMessage())

		switch {
		case werr.Kind == workflow.KindFinalizePostPayment:
			if !ask("Retry completing the submission?") {
				return err
			}
			_, err = o.RetryFinalize(ctx)
		case werr.Retryable():
			if !ask("Try the payment again?") {
				return err
			}
			_, err = o.Pay(ctx, surface)
		default:
			return err
		}
	}
	return nil
}

func ask(message string) bool {
	yes := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: true}, &yes); err != nil {
		return false
	}
	return yes
}

// manualCheckout asks for the result of a checkout completed elsewhere.
type manualCheckout struct{}

func (manualCheckout) Open(_ context.Context, order workflow.Order) (<-chan workflow.CheckoutResult, error) {
	fmt.Printf("\nPay order %s (%s) with key %s, then enter the result.\n",
		order.OrderID, workflow.FormatAmount(order.Amount), order.KeyID)

	ch := make(chan workflow.CheckoutResult, 1)
	answers := struct {
		PaymentID string `survey:"payment_id"`
		Signature string
	}{}
	questions := []*survey.Question{
		{Name: "payment_id", Prompt: &survey.Input{Message: "Payment ID (empty to cancel):"}},
		{Name: "signature", Prompt: &survey.Input{Message: "Signature:"}},
	}
	if err := survey.Ask(questions, &answers); err != nil || answers.PaymentID == "" {
		close(ch)
		return ch, nil
	}
	ch <- workflow.CheckoutResult{PaymentID: strings.TrimSpace(answers.PaymentID), Signature: strings.TrimSpace(answers.Signature)}
	close(ch)
	return ch, nil
}

func label(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

