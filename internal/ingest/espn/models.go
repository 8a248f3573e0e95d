package espn

// RawGame is one schedule table row exactly as scraped.
// CSV headers match the raw dataset written by the collector.
type RawGame struct {
	Season     int    `csv:"Season"`
	Date       string `csv:"Date"`
	Opponent   string `csv:"Opponent"`
	Result     string `csv:"Result"`
	Record     string `csv:"Record"`
	HiPoints   string `csv:"Hi Points"`
	HiRebounds string `csv:"Hi Rebounds"`
	HiAssists  string `csv:"Hi Assists"`
}

// DefaultHeaders are used when the schedule table carries no header cells
var DefaultHeaders = []string{"DATE", "OPPONENT", "RESULT", "W-L", "Hi Points", "Hi Rebounds", "Hi Assists"}
