package market

// Nifty50 is the scan universe: the NIFTY 50 constituents. The index is
// reconstituted twice a year; refresh this list when the exchange
// announces changes.
var Nifty50 = []string{
	"ADANIENT",
	"ADANIPORTS",
	"APOLLOHOSP",
	"ASIANPAINT",
	"AXISBANK",
	"BAJAJ-AUTO",
	"BAJAJFINSV",
	"BAJFINANCE",
	"BEL",
	"BHARTIARTL",
	"BPCL",
	"BRITANNIA",
	"CIPLA",
	"COALINDIA",
	"DRREDDY",
	"EICHERMOT",
	"GRASIM",
	"HCLTECH",
	"HDFCBANK",
	"HDFCLIFE",
	"HEROMOTOCO",
	"HINDALCO",
	"HINDUNILVR",
	"ICICIBANK",
	"INDUSINDBK",
	"INFY",
	"ITC",
	"JSWSTEEL",
	"KOTAKBANK",
	"LT",
	"LTIM",
	"M&M",
	"MARUTI",
	"NESTLEIND",
	"NTPC",
	"ONGC",
	"POWERGRID",
	"RELIANCE",
	"SBILIFE",
	"SBIN",
	"SHRIRAMFIN",
	"SUNPHARMA",
	"TATACONSUM",
	"TATAMOTORS",
	"TATASTEEL",
	"TCS",
	"TECHM",
	"TITAN",
	"ULTRACEMCO",
	"WIPRO",
}
