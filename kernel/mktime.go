package main

const MINUTE = 60
const HOUR = 60 * MINUTE
const DAY = 24 * HOUR
const YEAR = 365 * DAY

// cumulative seconds at the start of each month, assuming a leap year
var month = [12]int64{
	0,
	DAY * 31,
	DAY * (31 + 29),
	DAY * (31 + 29 + 31),
	DAY * (31 + 29 + 31 + 30),
	DAY * (31 + 29 + 31 + 30 + 31),
	DAY * (31 + 29 + 31 + 30 + 31 + 30),
	DAY * (31 + 29 + 31 + 30 + 31 + 30 + 31),
	DAY * (31 + 29 + 31 + 30 + 31 + 30 + 31 + 31),
	DAY * (31 + 29 + 31 + 30 + 31 + 30 + 31 + 31 + 30),
	DAY * (31 + 29 + 31 + 30 + 31 + 30 + 31 + 31 + 30 + 31),
	DAY * (31 + 29 + 31 + 30 + 31 + 30 + 31 + 31 + 30 + 31 + 30),
}

// seconds since 1970, with the century pinned the way the CMOS's
// two-digit year forces. 2000 was itself a leap year, so the
// every-4-years rule holds across the pin.
func mktime(yr, mon, mday, hr, min, sec int) int64 {
	if yr < 70 {
		yr += 100
	}
	y := int64(yr - 70)
	// the leap days of the years before this one
	res := YEAR*y + DAY*((y+1)/4)
	res += month[mon]
	if mon > 1 && (y+2)%4 != 0 {
		res -= DAY
	}
	res += DAY * int64(mday-1)
	res += HOUR * int64(hr)
	res += MINUTE * int64(min)
	res += int64(sec)
	return res
}
