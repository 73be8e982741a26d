package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"

	"github.com/kkkkikiki/portal/internal/model"
	"github.com/kkkkikiki/portal/internal/service"
)

// BenchResult gathers counters for one phase. Latencies are in nanoseconds.
type BenchResult struct {
	TotalRequests int64
	SuccessCount  int64
	RejectedCount int64 // expected domain rejections (empty grant, already used)
	ErrorCount    int64
	LatencySum    int64
	P95Latency    int64
}

const (
	fixedWorkers   = 50
	fixedRPSTarget = 500
	grantRequests  = 2000
	redeemRequests = 500
	fixedStock     = 100
	defaultTimeout = 30 * time.Second
	defaultTarget  = "http://localhost:8080"
)

type clients struct {
	createOrg  *connect.Client[service.CreateOrganizationRequest, service.OrganizationResponse]
	createRule *connect.Client[service.CreateRuleRequest, service.RuleResponse]
	grant      *connect.Client[service.GrantRequest, service.GrantResponse]
	redemption *connect.Client[service.RedemptionRequest, service.RedemptionResponse]
	listRules  *connect.Client[service.ListRulesRequest, service.ListRulesResponse]
}

func newClients(httpClient *http.Client, target string) clients {
	return clients{
		createOrg:  connect.NewClient[service.CreateOrganizationRequest, service.OrganizationResponse](httpClient, target+service.CreateOrganizationProcedure, service.JSONCodec()),
		createRule: connect.NewClient[service.CreateRuleRequest, service.RuleResponse](httpClient, target+service.CreateRuleProcedure, service.JSONCodec()),
		grant:      connect.NewClient[service.GrantRequest, service.GrantResponse](httpClient, target+service.GrantProcedure, service.JSONCodec()),
		redemption: connect.NewClient[service.RedemptionRequest, service.RedemptionResponse](httpClient, target+service.RedemptionProcedure, service.JSONCodec()),
		listRules:  connect.NewClient[service.ListRulesRequest, service.ListRulesResponse](httpClient, target+service.ListRulesProcedure, service.JSONCodec()),
	}
}

func main() {
	target := os.Getenv("BENCH_TARGET")
	if target == "" {
		target = defaultTarget
	}

	transport := &http.Transport{
		MaxIdleConns:        fixedWorkers * 4,
		MaxIdleConnsPerHost: fixedWorkers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	c := newClients(&http.Client{Transport: transport, Timeout: defaultTimeout}, target)

	quizID := fmt.Sprintf("bench-%d", time.Now().UnixNano())
	rule, err := setup(c, quizID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("==========================================")
	fmt.Println("Reward grant / redeem concurrency bench")
	fmt.Println("==========================================")
	fmt.Printf("Target     : %s\n", target)
	fmt.Printf("Rule       : %s (stock %d)\n", rule.ID, fixedStock)
	fmt.Printf("Quiz       : %s\n", quizID)
	fmt.Printf("RPS        : %d\n", fixedRPSTarget)
	fmt.Println("==========================================")

	// Phase 1: many concurrent grants against a finite stock
	var codes sync.Map
	grants := run(grantRequests, func(ctx context.Context) (bool, error) {
		res, err := c.grant.CallUnary(ctx, connect.NewRequest(&service.GrantRequest{QuizID: quizID, Score: ptr(100.0), RecipientName: "bench"}))
		if err != nil {
			return false, err
		}
		for _, g := range res.Msg.Grants {
			codes.Store(g.Code, struct{}{})
		}
		return len(res.Msg.Grants) > 0, nil
	})
	report("Grant", grants)

	var code string
	codes.Range(func(k, _ any) bool {
		code = k.(string)
		return false
	})
	if code == "" {
		fmt.Fprintln(os.Stderr, "no code was granted, cannot run redeem phase")
		os.Exit(1)
	}

	// Phase 2: many concurrent uses of one code
	redeems := run(redeemRequests, func(ctx context.Context) (bool, error) {
		_, err := c.redemption.CallUnary(ctx, connect.NewRequest(&service.RedemptionRequest{Code: code, Action: service.ActionUse}))
		if connect.CodeOf(err) == connect.CodeFailedPrecondition {
			return false, nil
		}
		return err == nil, err
	})
	report("Redeem", redeems)

	fmt.Println("==========================================")
	fmt.Println("Consistency")
	fmt.Println("==========================================")
	if err := verifyConsistency(c, rule, grants.SuccessCount, redeems.SuccessCount); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func ptr[T any](v T) *T { return &v }

// setup creates an organization and one finite-stock rule bound to quizID.
func setup(c clients, quizID string) (*model.RewardRule, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	org, err := c.createOrg.CallUnary(ctx, connect.NewRequest(&service.CreateOrganizationRequest{Name: "Bench Organization"}))
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	rule, err := c.createRule.CallUnary(ctx, connect.NewRequest(&service.CreateRuleRequest{
		OrganizationID: org.Msg.Organization.ID,
		Name:           "Bench coupon",
		RewardKind:     model.RewardKindCoupon,
		Stock:          ptr[int64](fixedStock),
		QuizIDs:        []string{quizID},
	}))
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return rule.Msg.Rule, nil
}

// run issues total calls of fn from fixedWorkers goroutines at fixedRPSTarget.
func run(total int64, fn func(ctx context.Context) (bool, error)) *BenchResult {
	burst := fixedRPSTarget / fixedWorkers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(fixedRPSTarget), burst)

	var (
		result    BenchResult
		remaining = total
		wg        sync.WaitGroup
	)
	latencyChan := make(chan time.Duration, 4096)
	done := make(chan struct{})
	go func() {
		trackP95(latencyChan, &result)
		close(done)
	}()

	for i := 0; i < fixedWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for atomic.AddInt64(&remaining, -1) >= 0 {
				if err := limiter.Wait(context.Background()); err != nil {
					return
				}
				call(fn, &result, latencyChan)
			}
		}()
	}

	wg.Wait()
	close(latencyChan)
	<-done
	return &result
}

func call(fn func(ctx context.Context) (bool, error), result *BenchResult, latencyChan chan<- time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	ok, err := fn(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	case ok:
		atomic.AddInt64(&result.SuccessCount, 1)
	default:
		atomic.AddInt64(&result.RejectedCount, 1)
	}
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 keeps a bounded sample of latencies and updates the P95 estimate.
func trackP95(latencies <-chan time.Duration, result *BenchResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
			buf[idx] = lat.Nanoseconds()
		}
	}
	if len(buf) == 0 {
		return
	}
	slices.Sort(buf)
	p95Index := int(float64(len(buf)) * 0.95)
	if p95Index >= len(buf) {
		p95Index = len(buf) - 1
	}
	atomic.StoreInt64(&result.P95Latency, buf[p95Index])
}

func report(phase string, r *BenchResult) {
	var avg time.Duration
	if answered := r.SuccessCount + r.RejectedCount; answered > 0 {
		avg = time.Duration(r.LatencySum / answered)
	}
	fmt.Printf("[%s] total=%d success=%d rejected=%d errors=%d avg=%v p95=%v\n",
		phase, r.TotalRequests, r.SuccessCount, r.RejectedCount, r.ErrorCount, avg, time.Duration(r.P95Latency))
}

// verifyConsistency checks that grants never exceeded stock and a code was used once.
func verifyConsistency(c clients, rule *model.RewardRule, granted, redeemed int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := c.listRules.CallUnary(ctx, connect.NewRequest(&service.ListRulesRequest{OrganizationID: rule.OrganizationID}))
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	idx := slices.IndexFunc(res.Msg.Rules, func(r model.RewardRule) bool { return r.ID == rule.ID })
	if idx < 0 {
		return errors.New("bench rule not found")
	}
	current := res.Msg.Rules[idx]
	if current.Stock == nil {
		return errors.New("bench rule lost its stock limit")
	}

	left := *current.Stock
	fmt.Printf("Stock left     : %d\n", left)
	fmt.Printf("Granted (bench): %d\n", granted)
	fmt.Printf("Redeemed       : %d\n", redeemed)

	if granted+left != fixedStock {
		return fmt.Errorf("stock mismatch: granted=%d + left=%d != %d", granted, left, fixedStock)
	}
	if redeemed != 1 {
		return fmt.Errorf("code redeemed %d times, want exactly 1", redeemed)
	}
	return nil
}
