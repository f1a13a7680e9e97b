package cli

import (
	"fmt"

	"wu-obs-scraper/internal/version"
)

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	var err error
	switch args[0] {
	case "daily":
		err = runDaily(args[1:])
	case "historical":
		err = runHistorical(args[1:])
	case "features":
		err = runFeatures(args[1:])
	case "export-daily":
		err = runExportDaily(args[1:])
	case "export-historical":
		err = runExportHistorical(args[1:])
	case "export-features":
		err = runExportFeatures(args[1:])
	case "sync":
		err = runSync(args[1:])
	case "init":
		err = runInit(args[1:])
	case "doctor":
		err = runDoctor(args[1:])
	case "add":
		err = runAddProject(args[1:])
	case "list":
		err = runListProjects(args[1:])
	case "remove":
		err = runRemoveProject(args[1:])
	case "manage":
		err = runManage(args[1:])
	case "settings":
		err = runSettings(args[1:])
	case "status":
		err = runStatus(args[1:])
	case "stations":
		err = runStations(args[1:])
	case "discover":
		err = runDiscover(args[1:])
	case "self-update":
		err = runSelfUpdate(args[1:])
	case "version":
		fmt.Println(version.Value)
		return nil
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil {
		return err
	}

	maybePrintUpdateHint(args)
	return nil
}

func printRootUsage() {
	fmt.Println("wu-obs-scraper: Weather Underground observation cache builder")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  wu-obs-scraper init")
	fmt.Println("  wu-obs-scraper daily KMABOSTO42 KMACAMBR7 -s 2020-01-01")
	fmt.Println("  wu-obs-scraper add --stations KMABOSTO42,KMACAMBR7 [--name <set>]")
	fmt.Println("  wu-obs-scraper sync --all-projects")
	fmt.Println()
	fmt.Println("Scrape Commands:")
	fmt.Println("  daily       scrape daily PWS observations, one cache entry per station-month")
	fmt.Println("  historical  scrape hourly observations, one cache entry per station-day")
	fmt.Println("  features    scrape station-discovery GeoJSON tiles by zoom level")
	fmt.Println()
	fmt.Println("Export Commands:")
	fmt.Println("  export-daily       merge cached daily months into one flat CSV")
	fmt.Println("  export-historical  merge cached hourly days into one flat CSV")
	fmt.Println("  export-features    merge cached tiles into one GeoJSON collection")
	fmt.Println()
	fmt.Println("Station Set Commands:")
	fmt.Println("  init      create the registry + run environment checks")
	fmt.Println("  doctor    run config, directory, and API key preflight checks")
	fmt.Println("  add       register a named station set with scrape defaults")
	fmt.Println("  list      list registered station sets")
	fmt.Println("  remove    remove a station set from the registry")
	fmt.Println("  manage    interactive station set manager (wizard + editor)")
	fmt.Println("  settings  show/update global runtime settings")
	fmt.Println("  sync      scrape registered station set(s), optionally on a schedule")
	fmt.Println("  status    cache completeness rollup for station set(s)")
	fmt.Println()
	fmt.Println("Utility Commands:")
	fmt.Println("  stations    fetch the NWS station index and write a CSV")
	fmt.Println("  discover    extract station records from cached feature tiles")
	fmt.Println("  self-update update the CLI from GitHub Releases")
	fmt.Println("  version     print the build version")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - API key resolution order: --api-key, WUOS_API_KEY, then api_key.txt")
	fmt.Println("  - The scrape cache is append-only; rerunning a command fetches only holes")
}
