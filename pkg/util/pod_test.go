/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"reflect"
	"testing"

	corev1 "k8s.io/api/core/v1"
)

func TestGetPodConditionFromList(t *testing.T) {
	tests := []struct {
		podConditions []corev1.PodCondition
		conditionType corev1.PodConditionType
		index         int
		podCondition  *corev1.PodCondition
	}{
		{
			podConditions: []corev1.PodCondition{
				{
					Type:   corev1.PodInitialized,
					Status: corev1.ConditionTrue,
				},
				{
					Type:   corev1.PodReady,
					Status: corev1.ConditionFalse,
				},
			},
			conditionType: corev1.PodReady,
			index:         1,
			podCondition: &corev1.PodCondition{
				Type:   corev1.PodReady,
				Status: corev1.ConditionFalse,
			},
		},
		{
			podConditions: nil,
			conditionType: corev1.PodReady,
			index:         -1,
			podCondition:  nil,
		},
	}

	for _, test := range tests {
		actualIndex, actualPodCondition := GetPodConditionFromList(test.podConditions, test.conditionType)
		if actualIndex != test.index {
			t.Errorf("expect to get index %v but got %v", test.index, actualIndex)
		}
		if test.podCondition == nil {
			if actualPodCondition != nil {
				t.Errorf("expect to get nil condition but got %v", *actualPodCondition)
			}
			continue
		}
		if !reflect.DeepEqual(*test.podCondition, *actualPodCondition) {
			t.Errorf("expect to get condition %v but got %v", *test.podCondition, *actualPodCondition)
		}
	}
}

func TestIsPodReady(t *testing.T) {
	tests := []struct {
		pod   *corev1.Pod
		ready bool
	}{
		{
			pod: &corev1.Pod{
				Status: corev1.PodStatus{
					Conditions: []corev1.PodCondition{
						{Type: corev1.PodReady, Status: corev1.ConditionTrue},
					},
				},
			},
			ready: true,
		},
		{
			pod: &corev1.Pod{
				Status: corev1.PodStatus{
					Conditions: []corev1.PodCondition{
						{Type: corev1.PodReady, Status: corev1.ConditionFalse},
					},
				},
			},
			ready: false,
		},
		{
			pod:   &corev1.Pod{},
			ready: false,
		},
	}

	for _, test := range tests {
		if actual := IsPodReady(test.pod); actual != test.ready {
			t.Errorf("expect ready %v but got %v", test.ready, actual)
		}
	}
}

func TestHasFinalizer(t *testing.T) {
	pod := &corev1.Pod{}
	pod.Finalizers = []string{"skynet/finalizer"}
	if !HasFinalizer(pod, "skynet/finalizer") {
		t.Error("expect finalizer to be present")
	}
	if HasFinalizer(pod, "other/finalizer") {
		t.Error("expect finalizer to be absent")
	}
}
