package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"interactived/governor"
	"interactived/platform"
	"interactived/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "console" {
		runConsole()
		return
	}

	var (
		noBrowser    = flag.Bool("no-browser", false, "Don't auto-open browser")
		configPath   = flag.String("config", "config.yml", "Path to config file")
		hashPassword = flag.String("hash-password", "", "Generate bcrypt hash for a password and exit")
		versionFlag  = flag.Bool("version", false, "Print version information and exit")
		vFlag        = flag.Bool("v", false, "Print version information and exit (shorthand)")
		silentFlag   = flag.Bool("silent", false, "Run interactived in the background as a daemon")
		sFlag        = flag.Bool("s", false, "Run interactived in the background as a daemon (shorthand)")
	)

	flag.Usage = func() {
		blue := color.New(color.FgHiCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		key := color.New(color.FgGreen)
		code := color.New(color.FgHiWhite)

		fmt.Println()
		blue.Println("  interactived")
		dim.Println("  A userspace cpufreq_interactive-style governor and hot-plug decider.")
		fmt.Println()

		color.New(color.FgHiWhite, color.Bold).Println("  USAGE")
		fmt.Println("    interactived [flags]")
		fmt.Println()

		color.New(color.FgHiWhite, color.Bold).Println("  FLAGS")
		fmt.Printf("    %s   Path to the YAML configuration file (default: \"config.yml\")\n", key.Sprint("-config <path>          "))
		fmt.Printf("    %s   Generate a secure bcrypt hash for a plaintext password\n", key.Sprint("-hash-password <pwd>    "))
		fmt.Printf("    %s   Do not automatically launch the web dashboard\n", key.Sprint("-no-browser             "))
		fmt.Printf("    %s   Run in the background as a daemon\n", key.Sprint("-s, -silent             "))
		fmt.Printf("    %s   Print version and build information\n", key.Sprint("-v, -version            "))
		fmt.Printf("    %s   Show this help message\n", key.Sprint("-h, -help               "))
		fmt.Println()

		color.New(color.FgHiWhite, color.Bold).Println("  EXAMPLES")
		dim.Println("    Start interactively (auto-generates config.yml on first run):")
		code.Println("    $ ./interactived\n")

		dim.Println("    Run headless (for servers) with a custom config file:")
		code.Println("    $ ./interactived -no-browser -config /etc/interactived/config.yml\n")
	}

	flag.Parse()

	if *silentFlag || *sFlag {
		if os.Getenv("INTERACTIVED_BACKGROUND") != "1" {
			cmd := exec.Command(os.Args[0], os.Args[1:]...)
			cmd.Env = append(os.Environ(), "INTERACTIVED_BACKGROUND=1")
			if err := cmd.Start(); err != nil {
				color.New(color.FgRed, color.Bold).Printf("\n  [FATAL] Failed to start in background: %v\n", err)
				os.Exit(1)
			}
			fmt.Println()
			color.New(color.FgGreen, color.Bold).Print("  [SUCCESS]")
			color.New(color.FgHiWhite).Print(" interactived is now running in the background!\n")
			color.New(color.FgHiBlack).Printf("            PID: %d\n\n", cmd.Process.Pid)
			os.Exit(0)
		}
	}

	if *versionFlag || *vFlag {
		color.New(color.FgHiCyan, color.Bold).Println("\n  interactived")
		color.New(color.FgHiWhite).Println("  Version:  1.0.0")
		color.New(color.FgHiBlack).Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		color.New(color.FgHiBlack).Printf("  Compiler: %s\n\n", runtime.Compiler)
		os.Exit(0)
	}

	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), 12)
		if err != nil {
			color.New(color.FgRed, color.Bold).Printf("\n  [ERROR] Failed to hash password: %v\n", err)
			os.Exit(1)
		}
		color.New(color.FgGreen, color.Bold).Println("\n  [SUCCESS] Generated bcrypt hash:")
		color.New(color.FgHiBlack).Println("  Copy the string below and paste it into your config.yml\n")
		color.New(color.FgHiCyan).Println("  " + string(hash) + "\n")
		os.Exit(0)
	}

	if err := server.LoadConfig(*configPath); err != nil {
		color.New(color.FgRed, color.Bold).Printf("\n  [FATAL] Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if server.GlobalConfig.Auth.PasswordHash == "" {
		pwd := server.GenerateRandomPassword()
		hash, _ := bcrypt.GenerateFromPassword([]byte(pwd), 12)
		server.GlobalConfig.Auth.PasswordHash = string(hash)
		color.New(color.FgHiYellow).Println("\n  [WARNING] No password_hash set in config!")
		fmt.Printf("  Generated random temporary password: ")
		color.New(color.FgHiCyan, color.Bold).Println(pwd + "\n")
	}
	server.SetPasswordHash(server.GlobalConfig.Auth.PasswordHash)

	plat, policies := buildPlatform()
	ctrl := governor.NewController(plat, policies, governor.RealClock())
	if server.GlobalConfig.Governor.HispeedFreq != 0 {
		ctrl.Busy.SetHispeedFreq(server.GlobalConfig.Governor.HispeedFreq)
	}
	if server.GlobalConfig.Governor.GoHispeedLoad != 0 {
		ctrl.Busy.SetGoHispeedLoad(server.GlobalConfig.Governor.GoHispeedLoad)
	}
	if server.GlobalConfig.Governor.IdleHispeedFreq != 0 {
		ctrl.Idle.SetHispeedFreq(server.GlobalConfig.Governor.IdleHispeedFreq)
	}
	if server.GlobalConfig.Governor.IdleGoHispeedLoad != 0 {
		ctrl.Idle.SetGoHispeedLoad(server.GlobalConfig.Governor.IdleGoHispeedLoad)
	}
	if server.GlobalConfig.Governor.CoresOnTouch != 0 {
		ctrl.SetCoresOnTouch(server.GlobalConfig.Governor.CoresOnTouch)
	}
	ctrl.Start()

	adminLn, err := server.ServeAdminSocket(server.AdminSocketPath, ctrl)
	if err != nil {
		color.New(color.FgYellow).Printf("  [WARNING] admin socket unavailable: %v\n", err)
	}

	server.WatchHotplugAlerts(ctrl)

	addr := fmt.Sprintf("%s:%d", server.GlobalConfig.Server.Host, server.GlobalConfig.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", server.GlobalConfig.Server.Port)

	hub := server.NewHub(ctrl)
	go hub.Run()

	router := server.NewRouter(ctrl, hub)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,

		ReadHeaderTimeout: 5 * time.Second,
		ConnState: func(c net.Conn, state http.ConnState) {
			if state == http.StateNew {
				if tc, ok := c.(*net.TCPConn); ok {
					tc.SetLinger(0)
				}
			}
		},
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Println()
		color.New(color.FgHiCyan, color.Bold).Println("  interactived")
		fmt.Println()

		fmt.Print("  ")
		color.New(color.FgHiBlack).Print("→")
		fmt.Print(" Running at ")
		color.New(color.FgHiBlue, color.Underline).Println(url)

		fmt.Print("  ")
		color.New(color.FgHiBlack).Print("→")
		fmt.Print(" Press ")
		color.New(color.FgHiWhite, color.Bold).Print("Ctrl+C")
		fmt.Println(" to stop")
		fmt.Println()

		ln, err := server.NewListener(addr)
		if err != nil {
			color.New(color.FgRed, color.Bold).Printf("  [FATAL] Server error: %v\n", err)
			os.Exit(1)
		}

		server.NotifyTelegramStart()

		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			color.New(color.FgRed, color.Bold).Printf("  [FATAL] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	if !*noBrowser {
		go func() {
			time.Sleep(300 * time.Millisecond)
			openBrowser(url)
		}()
	}

	<-stop
	fmt.Println()
	fmt.Print("  ")
	color.New(color.FgHiBlack).Print("→")
	color.New(color.FgHiWhite).Println(" Shutting down...")

	hub.Stop()
	ctrl.Stop()
	if adminLn != nil {
		adminLn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Printf("  [FATAL] Server forced to shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Print("  ")
	color.New(color.FgHiBlack).Print("→")
	color.New(color.FgHiCyan, color.Bold).Println(" Bye!")
}

// buildPlatform assembles the governor's hardware collaborators and the
// policy → CPU layout, honoring Governor.Simulate / PolicyLayout from
// config. Real sysfs assembly only exists on Linux; every other host
// (and any explicit simulate: true) gets the deterministic simulator.
func buildPlatform() (*platform.Platform, map[int][]int) {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	policies := make(map[int][]int)
	policyCPU := make(map[int]int)
	if server.GlobalConfig.Governor.PolicyLayout == "per-cpu" {
		for cpu := 0; cpu < n; cpu++ {
			policies[cpu] = []int{cpu}
			policyCPU[cpu] = cpu
		}
	} else {
		cpus := make([]int, n)
		for i := range cpus {
			cpus[i] = i
		}
		policies[0] = cpus
		policyCPU[0] = 0
	}

	if !server.GlobalConfig.Governor.Simulate && runtime.GOOS == "linux" {
		if real := platform.NewRealPlatform(policyCPU); real != nil {
			return real, policies
		}
	}

	freqTable := []uint32{300000, 600000, 900000, 1200000, 1500000, 1800000}
	sim := platform.NewSim(policies, freqTable)
	return sim.Platform(), policies
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		cmd = exec.Command("open", url)
	}
	if err := cmd.Start(); err == nil {
		go cmd.Wait()
	}
}

// runConsole is the constrained admin REPL spawned by the daemon's own
// console websocket bridge. It never execs a shell; it only speaks the
// admin socket's fixed line protocol.
func runConsole() {
	conn, err := net.Dial("unix", server.AdminSocketPath)
	if err != nil {
		fmt.Printf("cannot reach admin socket: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("interactived console — type 'help' for commands, 'quit' to exit")
	connReader := bufio.NewReader(conn)
	stdin := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		fmt.Fprintln(conn, line)
		reply, err := connReader.ReadString('\n')
		if err != nil {
			return
		}
		fmt.Print(reply)
		if line == "quit\n" || line == "exit\n" {
			return
		}
	}
}
