package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Development tool that drives a running portal over HTTP",
	Long: `Simulator - Development tool for exercising a running portal

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Register a company from a license token and add 3 members
  simulator tenant --token=<license token> --members=3

  # Run 50 devices sending 5 heartbeats each, 2s apart
  simulator devices --count=50 --rounds=5 --interval=2s`,
	SilenceUsage: true,
}

var tenantFlags struct {
	token    string
	name     string
	members  int
	password string
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Register a company with a license token and populate it with members",
	RunE: func(cmd *cobra.Command, args []string) error {
		suffix := uuid.New().String()[:8]
		companyName := tenantFlags.name
		if companyName == "" {
			companyName = "Sim Company " + suffix
		}
		ownerEmail := fmt.Sprintf("owner_%s@sim.test", suffix)

		client := NewAPIClient(apiURL)

		fmt.Println("=== Tenant Simulator ===")
		fmt.Println()

		fmt.Print("Registering company... ")
		reg, err := client.RegisterCompany(tenantFlags.token, companyName, ownerEmail, tenantFlags.password)
		if err != nil {
			fmt.Println("FAILED")
			return err
		}
		fmt.Printf("OK (%s, slug: %s)\n", reg.Company.ID, reg.Company.Slug)

		fmt.Printf("Adding %d members:\n", tenantFlags.members)
		for i := 1; i <= tenantFlags.members; i++ {
			email := fmt.Sprintf("member%d_%s@sim.test", i, suffix)
			member, err := client.AddMember(email, tenantFlags.password, "member")
			if err != nil {
				fmt.Printf("  [%d] FAILED: %v\n", i, err)
				// Quota errors are expected once the license is full.
				if strings.Contains(err.Error(), "quota_exceeded") {
					break
				}
				continue
			}
			fmt.Printf("  [%d] %s (%s)\n", i, member.Email, member.Role)
		}

		usage, err := client.Usage()
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("=== Summary ===")
		fmt.Printf("Company:  %s\n", companyName)
		fmt.Printf("Owner:    %s / %s\n", ownerEmail, tenantFlags.password)
		fmt.Printf("Users:    %d / %d\n", usage.ActiveUsers, usage.MaxUsers)
		fmt.Printf("Storage:  %d / %d bytes\n", usage.UsedBytes, usage.MaxStorageBytes)
		return nil
	},
}

var devicesFlags struct {
	count    int
	rounds   int
	interval time.Duration
	prefix   string
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Simulate a fleet of devices sending heartbeats",
	RunE: func(cmd *cobra.Command, args []string) error {
		if devicesFlags.count < 1 {
			return fmt.Errorf("--count must be at least 1")
		}

		fmt.Printf("=== Device Simulator: %d devices x %d rounds ===\n", devicesFlags.count, devicesFlags.rounds)

		var ok, failed atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < devicesFlags.count; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				client := NewAPIClient(apiURL)
				uid := fmt.Sprintf("%s-%03d", devicesFlags.prefix, i)
				for round := 0; round < devicesFlags.rounds; round++ {
					if round > 0 {
						time.Sleep(devicesFlags.interval)
					}
					info := map[string]interface{}{
						"firmware": "1.0.0",
						"round":    round,
						"uptime":   round * int(devicesFlags.interval.Seconds()),
					}
					if _, err := client.Heartbeat(uid, "Simulated "+uid, info); err != nil {
						failed.Add(1)
						fmt.Printf("  %s round %d FAILED: %v\n", uid, round, err)
						continue
					}
					ok.Add(1)
				}
			}(i)
		}
		wg.Wait()

		fmt.Println()
		fmt.Printf("Heartbeats: %d ok, %d failed\n", ok.Load(), failed.Load())
		if failed.Load() > 0 {
			return fmt.Errorf("%d heartbeats failed", failed.Load())
		}
		return nil
	},
}

func main() {
	apiURL = "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	f := tenantCmd.Flags()
	f.StringVar(&tenantFlags.token, "token", "", "unused license token to redeem")
	f.StringVar(&tenantFlags.name, "name", "", "company name (random when empty)")
	f.IntVar(&tenantFlags.members, "members", 3, "number of members to add")
	f.StringVar(&tenantFlags.password, "password", "simpassword123", "password for every created user")
	tenantCmd.MarkFlagRequired("token")

	f = devicesCmd.Flags()
	f.IntVar(&devicesFlags.count, "count", 10, "number of devices")
	f.IntVar(&devicesFlags.rounds, "rounds", 3, "heartbeats per device")
	f.DurationVar(&devicesFlags.interval, "interval", 5*time.Second, "delay between heartbeats")
	f.StringVar(&devicesFlags.prefix, "prefix", "sim-device", "uid prefix")

	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(devicesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
