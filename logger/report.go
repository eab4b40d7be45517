package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type venueStat struct {
	fetches int64
	records int64
}

var (
	errorsFetch   int64
	errorsRefresh int64
	warnsFetch    int64
	warnsRefresh  int64
	refreshes     int64
	recordsTotal  int64
	opportunities int64
	venues        sync.Map // map[string]*venueStat
)

func recordWarn(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&warnsFetch, 1)
	} else if strings.Contains(component, "aggregator") {
		atomic.AddInt64(&warnsRefresh, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "reader") {
		atomic.AddInt64(&errorsFetch, 1)
	} else if strings.Contains(component, "aggregator") {
		atomic.AddInt64(&errorsRefresh, 1)
	}
}

// IncrementVenueFetch records one completed fetch against a venue along with
// how many records it produced.
func IncrementVenueFetch(venue string, records int) {
	v, _ := venues.LoadOrStore(venue, &venueStat{})
	vs := v.(*venueStat)
	atomic.AddInt64(&vs.fetches, 1)
	atomic.AddInt64(&vs.records, int64(records))
	atomic.AddInt64(&recordsTotal, int64(records))
}

// IncrementRefresh records one completed aggregation cycle.
func IncrementRefresh() {
	atomic.AddInt64(&refreshes, 1)
}

// IncrementOpportunities records how many spreads cleared the threshold in
// one arbitrage scan.
func IncrementOpportunities(count int) {
	atomic.AddInt64(&opportunities, int64(count))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and venue statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)
	venueData := map[string]map[string]int64{}
	venues.Range(func(k, v any) bool {
		name := k.(string)
		vs := v.(*venueStat)
		venueData[name] = map[string]int64{
			"fetches": atomic.LoadInt64(&vs.fetches),
			"records": atomic.LoadInt64(&vs.records),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_fetch":   atomic.LoadInt64(&errorsFetch),
		"errors_refresh": atomic.LoadInt64(&errorsRefresh),
		"warns_fetch":    atomic.LoadInt64(&warnsFetch),
		"warns_refresh":  atomic.LoadInt64(&warnsRefresh),
		"refreshes":      atomic.LoadInt64(&refreshes),
		"records_total":  atomic.LoadInt64(&recordsTotal),
		"opportunities":  atomic.LoadInt64(&opportunities),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memStats.Used) / 1024 / 1024,
		"venues":         venueData,
		"net_bytes_sent": int64(bytesSent),
		"net_bytes_recv": int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("FF-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("FF-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("FF-ErrorsFetch"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_fetch"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-ErrorsRefresh"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_refresh"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-WarnsFetch"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_fetch"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-WarnsRefresh"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_refresh"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-RefreshCount"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["refreshes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-RecordCount"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["records_total"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-Opportunities"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["opportunities"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("FF-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range venueData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FF-VenueFetches"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Venue"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["fetches"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FF-VenueRecords"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Venue"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["records"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
