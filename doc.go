// Package cveval computes offline accuracy and ranking metrics for image
// classification and object detection predictions.
//
// # Quick Start
//
//	ev, err := cveval.New(cveval.ObjectDetection, cveval.WithIOUThresholds(0.5, 0.75))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, b := range batches {
//	    if err := ev.Add(b); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	fmt.Println(ev.Report()) // map[mAP_50:0.62 mAP_75:0.41]
//
// # Task Types
//
// Three evaluators share the Evaluator interface:
//   - MulticlassEvaluator reports top1_accuracy, top5_accuracy and average_precision.
//   - MultilabelEvaluator reports accuracy_50 and average_precision.
//   - DetectionEvaluator reports one mAP_<iou> entry per IoU threshold.
//
// # Thread Safety
//
// Evaluators are not safe for concurrent mutation. Produce batches on as many
// goroutines as needed and feed them to a single consumer, for example with
// Accumulate. Report never mutates state and may be called at any point.
package cveval
